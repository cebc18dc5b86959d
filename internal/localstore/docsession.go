package localstore

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"github.com/imrishuroy/bagshop/internal/docstore"
)

// sessionTTL bounds how long an idle server-side session is honoured.
const sessionTTL = 24 * time.Hour

type sessionDoc struct {
	Values    map[string]string `json:"values"`
	ExpiresAt time.Time         `json:"expiresAt"`
}

// DocStore is a sessions.Store that keeps session values in the sessions
// document collection. The cookie only carries the signed session id, so
// the session size is not bound by cookie limits.
//
// TODO: expired documents are ignored but never deleted; purge them from a
// scheduled job once the sessions table grows.
type DocStore struct {
	Codecs  []securecookie.Codec
	Options *sessions.Options
	TTL     time.Duration

	coll    docstore.Collection[sessionDoc]
	nowFunc func() time.Time
}

// NewDocStore opens the sessions collection on b. keyPairs sign the id
// cookie as in sessions.NewCookieStore.
func NewDocStore(b *docstore.Backend, keyPairs ...[]byte) *DocStore {
	return &DocStore{
		Codecs:  securecookie.CodecsFromPairs(keyPairs...),
		Options: &sessions.Options{Path: "/", HttpOnly: true},
		TTL:     sessionTTL,
		coll:    docstore.Open[sessionDoc](b, docstore.Sessions),
		nowFunc: time.Now,
	}
}

func (s *DocStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New loads the session named by the request cookie. An unsigned, unknown or
// expired id yields a fresh session that gets a new id on Save.
func (s *DocStore) New(r *http.Request, name string) (*sessions.Session, error) {
	sess := sessions.NewSession(s, name)
	opts := *s.Options
	sess.Options = &opts
	sess.IsNew = true

	c, err := r.Cookie(name)
	if err != nil {
		return sess, nil
	}
	var id string
	if err := securecookie.DecodeMulti(name, c.Value, &id, s.Codecs...); err != nil {
		return sess, err
	}
	rec, err := s.coll.Get(r.Context(), id)
	if err != nil {
		return sess, fmt.Errorf("load session: %w", err)
	}
	if rec == nil || !s.nowFunc().Before(rec.Data.ExpiresAt) {
		return sess, nil
	}
	sess.ID = id
	for k, v := range rec.Data.Values {
		sess.Values[k] = v
	}
	sess.IsNew = false
	return sess, nil
}

// Save writes the session values and refreshes the id cookie. A negative
// MaxAge deletes the session.
func (s *DocStore) Save(r *http.Request, w http.ResponseWriter, sess *sessions.Session) error {
	ctx := r.Context()
	if sess.Options.MaxAge < 0 {
		if sess.ID != "" {
			if err := s.coll.Delete(ctx, sess.ID); err != nil {
				return fmt.Errorf("delete session: %w", err)
			}
		}
		http.SetCookie(w, sessions.NewCookie(sess.Name(), "", sess.Options))
		return nil
	}

	doc := sessionDoc{
		Values:    make(map[string]string, len(sess.Values)),
		ExpiresAt: s.nowFunc().Add(s.TTL),
	}
	for k, v := range sess.Values {
		ks, kok := k.(string)
		vs, vok := v.(string)
		if !kok || !vok {
			return fmt.Errorf("session value %v: only string keys and values are stored", k)
		}
		doc.Values[ks] = vs
	}

	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if err := s.coll.Put(ctx, sess.ID, doc); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	encoded, err := securecookie.EncodeMulti(sess.Name(), sess.ID, s.Codecs...)
	if err != nil {
		return fmt.Errorf("sign session id: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(sess.Name(), encoded, sess.Options))
	return nil
}
