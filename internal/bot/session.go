package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"mposter-tg-bot/internal/media"
	"mposter-tg-bot/internal/tg"
)

// session is one interactive search a user is paging through.
type session struct {
	id      string
	chatID  int64
	userID  int64
	query   string
	results []media.Record
	created time.Time
}

type sessions struct {
	mu    sync.Mutex
	items map[string]*session
	ttl   time.Duration
	now   func() time.Time
}

func newSessions(ttl time.Duration, now func() time.Time) *sessions {
	return &sessions{items: make(map[string]*session), ttl: ttl, now: now}
}

func (s *sessions) add(chatID, userID int64, query string, results []media.Record) *session {
	sess := &session{
		id:      uuid.NewString(),
		chatID:  chatID,
		userID:  userID,
		query:   query,
		results: results,
		created: s.now(),
	}
	s.mu.Lock()
	s.items[sess.id] = sess
	s.mu.Unlock()
	return sess
}

// get returns a live session; expired ones are dropped on access.
func (s *sessions) get(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if s.now().Sub(sess.created) > s.ttl {
		delete(s.items, id)
		return nil, false
	}
	return sess, true
}

// take removes and returns a live session so a selection is acted on once.
func (s *sessions) take(id string) (*session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	delete(s.items, id)
	if s.now().Sub(sess.created) > s.ttl {
		return nil, false
	}
	return sess, true
}

func (s *sessions) remove(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *sessions) purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, sess := range s.items {
		if now.Sub(sess.created) > s.ttl {
			delete(s.items, id)
			n++
		}
	}
	return n
}

func (s *sessions) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Keyboard renders one page of results, one button per row, with <<< and >>>
// navigation when there is more than one page.
func (sess *session) Keyboard(page, perPage int) (*tg.InlineKeyboardMarkup, int, int) {
	if perPage <= 0 {
		perPage = 5
	}
	total := len(sess.results)
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		totalPages = 1
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * perPage
	end := start + perPage
	if end > total {
		end = total
	}

	rows := make([][]tg.InlineKeyboardButton, 0, perPage+2)
	for i := start; i < end; i++ {
		rows = append(rows, []tg.InlineKeyboardButton{{
			Text:         buttonLabel(sess.results[i]),
			CallbackData: fmt.Sprintf("pick:%s:%d", sess.id, i),
		}})
	}

	if totalPages > 1 {
		nav := []tg.InlineKeyboardButton{}
		if page > 1 {
			nav = append(nav, tg.InlineKeyboardButton{Text: "<<<", CallbackData: fmt.Sprintf("page:%s:%d", sess.id, page-1)})
		}
		nav = append(nav, tg.InlineKeyboardButton{Text: fmt.Sprintf("%d/%d", page, totalPages), CallbackData: "noop"})
		if page < totalPages {
			nav = append(nav, tg.InlineKeyboardButton{Text: ">>>", CallbackData: fmt.Sprintf("page:%s:%d", sess.id, page+1)})
		}
		rows = append(rows, nav)
	}

	rows = append(rows, []tg.InlineKeyboardButton{{Text: "❌ Cancel", CallbackData: "cancel:" + sess.id}})
	kb := tg.NewInlineKeyboardMarkup(rows)
	return &kb, page, totalPages
}

func buttonLabel(rec media.Record) string {
	label := fmt.Sprintf("%s (%s)", rec.Title, rec.Year())
	if rec.Kind == media.KindTV {
		label = "📺 " + label
	} else {
		label = "🎬 " + label
	}
	if rec.Rating > 0 {
		label += fmt.Sprintf(" ⭐ %.1f", rec.Rating)
	}
	return label
}
