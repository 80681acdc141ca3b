package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aslbekqoziboyev/aiverselabs/internal/functions"
)

// Invoker calls a proxy function by name, encoding req and decoding into resp.
type Invoker interface {
	Invoke(ctx context.Context, name string, req, resp any) error
}

// FuncInvoker calls the functions in-process.
type FuncInvoker struct {
	Registry *functions.Registry
}

func (f FuncInvoker) Invoke(ctx context.Context, name string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	out, err := f.Registry.Invoke(ctx, name, body)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, resp)
}

// HTTPInvoker calls /functions/v1/<name> on a remote deployment.
type HTTPInvoker struct {
	BaseURL string
	Token   string
	Client  *http.Client
}

func (h HTTPInvoker) Invoke(ctx context.Context, name string, req, resp any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := strings.TrimRight(h.BaseURL, "/") + "/functions/v1/" + name
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.Token)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	res, err := client.Do(httpReq)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		var fnErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &fnErr) == nil && fnErr.Error != "" {
			return fmt.Errorf("%s: %s", name, fnErr.Error)
		}
		return fmt.Errorf("%s: unexpected status %d", name, res.StatusCode)
	}
	return json.Unmarshal(raw, resp)
}
