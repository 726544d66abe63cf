package login

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	clierrors "github.com/salmonumbrella/anaconda-cli/internal/errors"
)

// CallbackTimeout is how long to wait for the OAuth callback.
const CallbackTimeout = 2 * time.Minute

const successHTML = `<!DOCTYPE html>
<html>
  <head><title>Anaconda Login</title></head>
  <body>
    <h1>Login successful</h1>
    <p>You can close this tab and return to the terminal.</p>
  </body>
</html>`

type callbackResult struct {
	code string
	err  error
}

// codeCapture is a loopback HTTP server waiting for the identity service to
// redirect the browser back with an authorization code.
type codeCapture struct {
	listener net.Listener
	server   *http.Server
	path     string
	ch       chan callbackResult
}

// startCapture binds the redirect URI's host:port and begins serving its
// path. Binding happens before the browser opens so the redirect always has
// a listener; redirectURL reports the actual bound address, which matters
// when the URI asks for port 0.
func startCapture(redirectURI, state string) (*codeCapture, error) {
	parsed, err := url.Parse(redirectURI)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect URI %q: %w", redirectURI, err)
	}

	listener, err := net.Listen("tcp", parsed.Host)
	if err != nil {
		return nil, clierrors.WrapUserError(err,
			fmt.Sprintf("cannot listen on %s for the login callback", parsed.Host),
			"Close the application using the port, or set a different redirect_uri in the config")
	}

	path := parsed.Path
	if path == "" {
		path = "/"
	}

	c := &codeCapture{
		listener: listener,
		path:     path,
		ch:       make(chan callbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if errParam := q.Get("error"); errParam != "" {
			desc := q.Get("error_description")
			if desc == "" {
				desc = errParam
			}
			c.ch <- callbackResult{err: &clierrors.AuthenticationError{Message: "authorization failed: " + desc}}
			http.Error(w, desc, http.StatusBadRequest)
			return
		}

		if got := q.Get("state"); got != state {
			c.ch <- callbackResult{err: &clierrors.AuthenticationError{Message: "state parameter mismatch in login callback"}}
			http.Error(w, "State mismatch", http.StatusBadRequest)
			return
		}

		code := q.Get("code")
		if code == "" {
			c.ch <- callbackResult{err: &clierrors.AuthenticationError{Message: "no authorization code received"}}
			http.Error(w, "Missing code", http.StatusBadRequest)
			return
		}

		c.ch <- callbackResult{code: code}

		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(successHTML))
	})

	c.server = &http.Server{Handler: mux}
	go func() { _ = c.server.Serve(listener) }()

	return c, nil
}

// redirectURL returns the redirect URI with the actual bound address.
func (c *codeCapture) redirectURL() string {
	return "http://" + c.listener.Addr().String() + c.path
}

// wait blocks until the callback arrives, the timeout passes, or ctx is done.
func (c *codeCapture) wait(ctx context.Context) (string, error) {
	select {
	case result := <-c.ch:
		if result.err != nil {
			return "", result.err
		}
		return result.code, nil
	case <-time.After(CallbackTimeout):
		return "", clierrors.NewUserError(
			fmt.Sprintf("authorization timed out after %s", CallbackTimeout),
			"Run 'anc login' to try again")
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *codeCapture) close() {
	_ = c.server.Close()
}
