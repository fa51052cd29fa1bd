// Package xrun 提供基于 errgroup + context 的进程生命周期管理。
//
// 任一服务返回错误或收到终止信号时，共享的 context 被取消，
// 所有服务监听 ctx.Done() 并退出。
//
//	ln, err := net.Listen("tcp", "0.0.0.0:3001")
//	if err != nil {
//	    return err
//	}
//	srv := &http.Server{Handler: mux}
//	err = xrun.Run(ctx, nil, xrun.HTTPServer(srv, ln, 10*time.Second))
//	if errors.Is(err, xrun.ErrSignal) {
//	    // 正常的信号退出
//	}
//
// 需要自己控制退出时机时使用 [NewGroup] 并调用 [Group.Cancel]。
package xrun
