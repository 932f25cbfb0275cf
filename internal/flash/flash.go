package flash

import (
	"context"
	"errors"
	"net/http"
	"time"

	"example.com/cassandrablog/internal/logger"
	"github.com/google/uuid"
)

var logg = logger.New()

// CookieName carries the flash key between the redirect and the next page.
const CookieName = "flash"

// ErrEmpty is returned by Take when nothing was stored under the key.
var ErrEmpty = errors.New("flash: empty")

// PostForm echoes the submitted post fields back into the form.
type PostForm struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Message is what survives one redirect: the submitted form and the
// field errors it produced.
type Message struct {
	Post   *PostForm         `json:"post,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

// Store keeps messages until they are taken once.
type Store interface {
	Put(ctx context.Context, key string, msg Message) error
	// Take returns the message and removes it. ErrEmpty when missing.
	Take(ctx context.Context, key string) (Message, error)
}

// Set stores msg under a fresh key and points the flash cookie at it.
func Set(ctx context.Context, s Store, w http.ResponseWriter, msg Message) error {
	key := uuid.NewString()
	if err := s.Put(ctx, key, msg); err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    key,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Get takes the message referenced by the request's flash cookie and clears
// the cookie. A missing or expired message yields an empty Message.
func Get(ctx context.Context, s Store, w http.ResponseWriter, r *http.Request) Message {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return Message{}
	}
	http.SetCookie(w, &http.Cookie{
		Name:    CookieName,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})

	msg, err := s.Take(ctx, c.Value)
	if err != nil {
		if !errors.Is(err, ErrEmpty) {
			logg.Error("flash", "Failed to read flash message", err)
		}
		return Message{}
	}
	return msg
}
