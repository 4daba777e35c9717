package media

import (
	"context"
	"time"
)

// Observer はメディア解決の結果を記録する。
type Observer interface {
	ObserveMediaResolve(backend, outcome string, duration time.Duration)
}

// instrumented はバックエンドの解決時間と結果をObserverに記録する。
type instrumented struct {
	Backend
	observer Observer
}

// WithObserver はバックエンドを計測付きでラップする。observerがnilの場合はそのまま返す。
func WithObserver(b Backend, observer Observer) Backend {
	if observer == nil {
		return b
	}
	return &instrumented{Backend: b, observer: observer}
}

// Resolve は内部バックエンドのResolveを計測する。
func (i *instrumented) Resolve(ctx context.Context, ref Ref) (*Resolved, error) {
	start := time.Now()
	res, err := i.Backend.Resolve(ctx, ref)
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	i.observer.ObserveMediaResolve(i.Backend.Name(), outcome, time.Since(start))
	return res, err
}
