package drill

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/stomp/internal/domain/message"
	"github.com/okian/stomp/pkg/logger"
)

// frame is the subset of an outbound message the drill inspects.
type frame struct {
	Type        message.Type `json:"type"`
	EmergencyID string       `json:"emergency_id"`
	Data        struct {
		ID string `json:"id"`
	} `json:"data"`
}

// arrivals maps emergency id -> user id -> first arrival time.
type arrivals map[string]map[string]time.Time

// listener holds one websocket per account and timestamps the frames they get.
type listener struct {
	mu       sync.Mutex
	alerts   arrivals
	resolved arrivals

	conns []*websocket.Conn
	wg    sync.WaitGroup
	now   func() time.Time
}

func newListener() *listener {
	return &listener{alerts: arrivals{}, resolved: arrivals{}, now: time.Now}
}

// connect opens the alert socket for a and starts its read loop.
func (l *listener) connect(ctx context.Context, baseURL string, a account) error {
	url := "ws" + strings.TrimPrefix(strings.TrimRight(baseURL, "/"), "http") + "/ws"
	header := http.Header{"Authorization": []string{"Bearer " + a.Token}}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: status %d: %w", a.Email, resp.StatusCode, err)
		}
		return fmt.Errorf("dial %s: %w", a.Email, err)
	}
	l.mu.Lock()
	l.conns = append(l.conns, conn)
	l.mu.Unlock()

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		l.read(conn, a)
	}()
	return nil
}

func (l *listener) read(conn *websocket.Conn, a account) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		at := l.now()
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			logger.Get().Warn(context.Background(), "undecodable frame", logger.String("user_id", a.ID), logger.Error(err))
			continue
		}
		switch f.Type {
		case message.TypeEmergencyAlert:
			l.record(l.alerts, f.Data.ID, a.ID, at)
		case message.TypeEmergencyResolved:
			l.record(l.resolved, f.EmergencyID, a.ID, at)
		}
	}
}

func (l *listener) record(into arrivals, emergencyID, userID string, at time.Time) {
	if emergencyID == "" {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	byUser, ok := into[emergencyID]
	if !ok {
		byUser = map[string]time.Time{}
		into[emergencyID] = byUser
	}
	if _, seen := byUser[userID]; !seen {
		byUser[userID] = at
	}
}

// alertAt returns when userID first saw the alert for emergencyID.
func (l *listener) alertAt(emergencyID, userID string) (time.Time, bool) {
	return l.lookup(l.alerts, emergencyID, userID)
}

// resolvedAt returns when userID first saw the resolution of emergencyID.
func (l *listener) resolvedAt(emergencyID, userID string) (time.Time, bool) {
	return l.lookup(l.resolved, emergencyID, userID)
}

func (l *listener) lookup(in arrivals, emergencyID, userID string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	at, ok := in[emergencyID][userID]
	return at, ok
}

// Close closes every socket and waits for the read loops.
func (l *listener) Close() {
	l.mu.Lock()
	conns := l.conns
	l.conns = nil
	l.mu.Unlock()
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "drill finished"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
	l.wg.Wait()
}
