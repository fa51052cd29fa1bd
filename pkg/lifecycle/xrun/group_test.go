package xrun

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func TestGroup_Empty(t *testing.T) {
	g, _ := NewGroup(context.Background())
	if err := g.Wait(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestGroup_ServiceError(t *testing.T) {
	expectedErr := errors.New("test error")
	var stopped atomic.Bool

	g, ctx := NewGroup(context.Background())
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return ctx.Err()
	})
	g.Go(func(ctx context.Context) error {
		return expectedErr
	})

	if err := g.Wait(); !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
	if !stopped.Load() {
		t.Error("sibling service was not stopped")
	}
	if ctx.Err() == nil {
		t.Error("group context should be canceled")
	}
}

func TestGroup_NilFunc(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go(nil)
	if err := g.Wait(); !errors.Is(err, ErrNilFunc) {
		t.Errorf("expected ErrNilFunc, got %v", err)
	}
}

func TestGroup_NilContext(t *testing.T) {
	//nolint:staticcheck // 验证 nil ctx 被归一化
	g, ctx := NewGroup(nil)
	if ctx == nil {
		t.Fatal("context should not be nil")
	}
	if err := g.Wait(); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
}

func TestGroup_CancelCause(t *testing.T) {
	cause := errors.New("shutdown requested")

	tests := []struct {
		name  string
		cause error
		want  error
	}{
		{"显式原因被返回", cause, cause},
		{"nil 原因返回 nil", nil, nil},
		{"context.Canceled 被过滤", context.Canceled, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := NewGroup(context.Background())
			g.Go(WaitForDone())
			g.Cancel(tt.cause)
			if err := g.Wait(); !errors.Is(err, tt.want) || (tt.want == nil && err != nil) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGroup_CancelCauseWhenServicesReturnNil(t *testing.T) {
	cause := errors.New("custom")
	g, _ := NewGroup(context.Background())
	g.Go(func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
	g.Cancel(cause)
	if err := g.Wait(); !errors.Is(err, cause) {
		t.Errorf("expected %v, got %v", cause, err)
	}
}

func TestGroup_ServiceInternalCanceledIsKept(t *testing.T) {
	g, _ := NewGroup(context.Background())
	g.Go(func(ctx context.Context) error {
		return context.Canceled
	})
	if err := g.Wait(); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGroup_ParentCancelIsFiltered(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	g, _ := NewGroup(parent)
	g.Go(WaitForDone())
	cancel()
	if err := g.Wait(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestGroup_GoWithName(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
	expectedErr := errors.New("boom")

	g, _ := NewGroup(context.Background(), WithLogger(logger), WithName("test"), nil)
	g.GoWithName("ok", func(ctx context.Context) error { return nil })
	g.GoWithName("bad", func(ctx context.Context) error { return expectedErr })
	g.GoWithName("nil", nil)

	err := g.Wait()
	if !errors.Is(err, expectedErr) && !errors.Is(err, ErrNilFunc) {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestRun_SignalError(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	ctx := withTestSigChan(context.Background(), sigCh)

	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, nil, WaitForDone())
	}()

	sigCh <- syscall.SIGTERM

	select {
	case err := <-done:
		var sigErr *SignalError
		if !errors.As(err, &sigErr) {
			t.Fatalf("expected SignalError, got %v", err)
		}
		if sigErr.Signal != syscall.SIGTERM {
			t.Errorf("expected SIGTERM, got %v", sigErr.Signal)
		}
		if !errors.Is(err, ErrSignal) {
			t.Error("error should match ErrSignal")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for Run to return")
	}
}

func TestRun_ServiceErrorStopsSignalWatcher(t *testing.T) {
	expectedErr := errors.New("startup failed")
	err := Run(context.Background(), []Option{WithSignals([]os.Signal{syscall.SIGUSR1})},
		func(ctx context.Context) error { return expectedErr },
	)
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
}

func TestRun_WithoutSignalHandler(t *testing.T) {
	sigCh := make(chan os.Signal, 1)
	sigCh <- syscall.SIGINT
	ctx, cancel := context.WithCancel(withTestSigChan(context.Background(), sigCh))
	defer cancel()
	time.AfterFunc(50*time.Millisecond, cancel)

	err := Run(ctx, []Option{WithoutSignalHandler()}, WaitForDone())
	if err != nil {
		t.Errorf("expected nil after parent cancel, got %v", err)
	}
	if len(sigCh) != 1 {
		t.Error("signal should not be consumed when handler is disabled")
	}
}

func TestSignalError_Error(t *testing.T) {
	if got := (&SignalError{Signal: syscall.SIGINT}).Error(); got != "received signal interrupt" {
		t.Errorf("unexpected message %q", got)
	}
	if got := (&SignalError{}).Error(); got != "received signal <nil>" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestDefaultSignals(t *testing.T) {
	s := DefaultSignals()
	if len(s) != 2 || s[0] != syscall.SIGINT || s[1] != syscall.SIGTERM {
		t.Errorf("unexpected default signals %v", s)
	}
	s[0] = syscall.SIGHUP
	if DefaultSignals()[0] != syscall.SIGINT {
		t.Error("DefaultSignals should return a fresh slice")
	}
}

func TestWithSignals_CopiesInput(t *testing.T) {
	signals := []os.Signal{syscall.SIGUSR1}
	opt := WithSignals(signals)
	signals[0] = syscall.SIGUSR2

	o := defaultOptions()
	opt(o)
	if o.signals[0] != syscall.SIGUSR1 {
		t.Error("WithSignals should copy its input")
	}
}

func listenLocal(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	return ln
}

func TestHTTPServer_GracefulShutdown(t *testing.T) {
	ln := listenLocal(t)
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "OK")
		}),
		ReadHeaderTimeout: time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, _ := NewGroup(ctx)
	g.Go(HTTPServer(srv, ln, time.Second))

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if string(body) != "OK" {
		t.Errorf("unexpected body %q", body)
	}
	http.DefaultClient.CloseIdleConnections()

	cancel()
	if err := g.Wait(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestHTTPServer_ExternalShutdown(t *testing.T) {
	ln := listenLocal(t)
	srv := &http.Server{ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- HTTPServer(srv, ln, time.Second)(ctx) }()

	// 等待 Serve 开始后从外部关闭
	for i := 0; i < 100; i++ {
		if c, err := net.Dial("tcp", ln.Addr().String()); err == nil {
			_ = c.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	_ = srv.Shutdown(context.Background())

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on external shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("HTTPServer blocked on external shutdown")
	}
}

func TestHTTPServer_ServeError(t *testing.T) {
	ln := listenLocal(t)
	_ = ln.Close()
	srv := &http.Server{ReadHeaderTimeout: time.Second}

	err := HTTPServer(srv, ln, time.Second)(context.Background())
	if err == nil || errors.Is(err, http.ErrServerClosed) {
		t.Errorf("expected serve error, got %v", err)
	}
}

type shutdownErrServer struct {
	closed chan struct{}
}

func (s *shutdownErrServer) Serve(net.Listener) error {
	<-s.closed
	return http.ErrServerClosed
}

func (s *shutdownErrServer) Shutdown(context.Context) error {
	close(s.closed)
	return errors.New("shutdown error")
}

func TestHTTPServer_ShutdownError(t *testing.T) {
	ln := listenLocal(t)
	defer ln.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := HTTPServer(&shutdownErrServer{closed: make(chan struct{})}, ln, 0)(ctx)
	if err == nil || err.Error() != "shutdown error" {
		t.Errorf("expected shutdown error, got %v", err)
	}
}

func TestHTTPServer_NilArguments(t *testing.T) {
	if err := HTTPServer(nil, nil, 0)(context.Background()); !errors.Is(err, ErrNilServer) {
		t.Errorf("expected ErrNilServer, got %v", err)
	}
	srv := &http.Server{ReadHeaderTimeout: time.Second}
	if err := HTTPServer(srv, nil, 0)(context.Background()); !errors.Is(err, ErrNilListener) {
		t.Errorf("expected ErrNilListener, got %v", err)
	}
}
