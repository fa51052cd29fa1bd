package xrun

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"
)

// HTTPServerInterface *http.Server 天然满足此接口
type HTTPServerInterface interface {
	Serve(ln net.Listener) error
	Shutdown(ctx context.Context) error
}

// HTTPServer 把 server 包装成在 ln 上提供服务、随 ctx 取消优雅关闭的服务函数。
//
// ln 由调用方预先绑定，端口占用等错误在启动阶段就能暴露。
// shutdownTimeout 小于等于 0 表示等待所有在途请求结束。
// 外部直接关闭 server（ctx 未取消）时返回 nil。
func HTTPServer(server HTTPServerInterface, ln net.Listener, shutdownTimeout time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		if server == nil {
			return ErrNilServer
		}
		if ln == nil {
			return ErrNilListener
		}
		shutdownErrCh := make(chan error, 1)
		serveDone := make(chan struct{})

		go func() {
			select {
			case <-ctx.Done():
				shutdownCtx := context.Background()
				if shutdownTimeout > 0 {
					var cancel context.CancelFunc
					shutdownCtx, cancel = context.WithTimeout(shutdownCtx, shutdownTimeout)
					defer cancel()
				}
				shutdownErrCh <- server.Shutdown(shutdownCtx)
			case <-serveDone:
			}
		}()

		err := server.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			select {
			case shutdownErr := <-shutdownErrCh:
				return shutdownErr
			case <-ctx.Done():
				return <-shutdownErrCh
			default:
				close(serveDone)
				return nil
			}
		}
		close(serveDone)
		return err
	}
}
