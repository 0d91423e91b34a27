//go:build !real_waku

package waku

// The real go-waku backend is compiled in only under the real_waku tag;
// the default build runs on the in-process mock bus, and selecting the
// go-waku transport surfaces a startup error instead.
func newGoWakuBackend() goWakuBackend {
	return nil
}
