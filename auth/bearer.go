package auth

import "net/http"

// Bearer attaches a static API key.
type Bearer struct {
	Key string
}

func (b *Bearer) Name() string { return "bearer" }

func (b *Bearer) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+b.Key)
	return nil
}
