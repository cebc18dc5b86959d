package localstore

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

// SessionName is the cookie name of the visitor session.
const SessionName = "bagshop_session"

// Session keys.
const (
	KeyCartItems     = "cart.items"
	KeyCartDiscount  = "cart.discount"
	KeyDiscountError = "cart.discountError"
)

// Session store kinds.
const (
	SessionStoreDoc        = "docstore"
	SessionStoreCookie     = "cookie"
	SessionStoreFilesystem = "filesystem"
)

// NewSessionStore builds the gorilla session store. kind is "docstore",
// "cookie" or "filesystem"; b is only used by "docstore". Session cookies
// carry no Max-Age so they end with the browser session. The filesystem
// store erases sessions whose MaxAge is not positive, so its sessions live
// for a day instead.
//
// A cookie store holds the whole cart in a 4KB cookie and should only be
// used for small local setups.
func NewSessionStore(kind, dir string, secret []byte, secure bool, b *docstore.Backend) (sessions.Store, error) {
	opts := &sessions.Options{
		Path:     "/",
		MaxAge:   0,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	switch kind {
	case SessionStoreDoc, "":
		if b == nil {
			return nil, fmt.Errorf("docstore session store needs a backend")
		}
		ds := NewDocStore(b, secret)
		ds.Options = opts
		return ds, nil
	case SessionStoreFilesystem:
		if dir == "" {
			dir = os.TempDir()
		}
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("session dir: %w", err)
		}
		fs := sessions.NewFilesystemStore(dir, secret)
		fsOpts := *opts
		fsOpts.MaxAge = int(sessionTTL / time.Second)
		fs.Options = &fsOpts
		fs.MaxLength(0)
		return fs, nil
	case SessionStoreCookie:
		cs := sessions.NewCookieStore(secret)
		cs.Options = opts
		return cs, nil
	default:
		return nil, fmt.Errorf("unknown session store %q", kind)
	}
}

// SessionKV exposes one request's session as a KV. Every Set or Delete is
// saved right away.
//
// Values are plain strings so the gob codec needs no type registration.
type SessionKV struct {
	store  sessions.Store
	r      *http.Request
	w      http.ResponseWriter
	logger *zap.Logger

	sess *sessions.Session
}

// NewSessionKV binds store to the current request and response.
func NewSessionKV(store sessions.Store, r *http.Request, w http.ResponseWriter, logger *zap.Logger) *SessionKV {
	return &SessionKV{store: store, r: r, w: w, logger: logger}
}

func (s *SessionKV) session() (*sessions.Session, error) {
	if s.sess != nil {
		return s.sess, nil
	}
	sess, err := s.store.Get(s.r, SessionName)
	if sess == nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if err != nil {
		// undecodable cookie; start over with the fresh session gorilla returned
		s.logger.Warn("discarding unreadable session", zap.Error(err))
	}
	s.sess = sess
	return sess, nil
}

func (s *SessionKV) Get(key string) (string, bool, error) {
	sess, err := s.session()
	if err != nil {
		return "", false, err
	}
	v, ok := sess.Values[key].(string)
	return v, ok, nil
}

func (s *SessionKV) Set(key, value string) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	sess.Values[key] = value
	if err := sess.Save(s.r, s.w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionKV) Delete(key string) error {
	sess, err := s.session()
	if err != nil {
		return err
	}
	if _, ok := sess.Values[key]; !ok {
		return nil
	}
	delete(sess.Values, key)
	if err := sess.Save(s.r, s.w); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
