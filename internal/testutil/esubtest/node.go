// Package esubtest runs an in-process fake esub node for tests. It covers
// the one-shot REST surface plus scripted psub/prep duplex endpoints; it
// is a test fixture, not a server implementation.
package esubtest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Rep records one received one-shot rep.
type Rep struct {
	Key   string
	Token string
	Psub  bool
	Body  string
}

// PrepFrame records one frame received on the prep endpoint.
type PrepFrame struct {
	Raw string
}

// Node is a scripted fake esub node.
type Node struct {
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu         sync.Mutex
	ip         string
	infoCalls  int
	subReplies map[string]string
	subStatus  map[string]int
	reps       []Rep
	psubFeeds  map[string][]string
	psubAcks   []string
	prepFrames []PrepFrame

	// Confirm mirrors the server-side receipt confirmation toggle: prep
	// frames are answered, psub deliveries expect an ack.
	Confirm bool

	// ConfirmPrefix prefixes prep confirmations, default "got:".
	ConfirmPrefix string
}

func NewNode() *Node {
	gin.SetMode(gin.TestMode)
	n := &Node{
		ip:            "127.0.0.1",
		subReplies:    map[string]string{},
		subStatus:     map[string]int{},
		psubFeeds:     map[string][]string{},
		ConfirmPrefix: "got:",
	}

	r := gin.New()
	r.GET("/info", n.handleInfo)
	r.GET("/sub/:key", n.handleSub)
	r.POST("/rep/:key", n.handleRep)
	r.GET("/psub/:key", n.handlePsub)
	r.GET("/prep", n.handlePrep)

	n.srv = httptest.NewServer(r)
	return n
}

func (n *Node) Close() {
	n.srv.Close()
}

// URL is the one-shot base address.
func (n *Node) URL() string {
	return n.srv.URL
}

// WSURL is the duplex base address.
func (n *Node) WSURL() string {
	return "ws" + strings.TrimPrefix(n.srv.URL, "http")
}

func (n *Node) SetIP(ip string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.ip = ip
}

func (n *Node) InfoCalls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.infoCalls
}

// SetSubReply cans the body returned for one-shot subs on key.
func (n *Node) SetSubReply(key, body string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subReplies[key] = body
}

// SetSubStatus forces a status code for one-shot subs on key.
func (n *Node) SetSubStatus(key string, status int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subStatus[key] = status
}

func (n *Node) Reps() []Rep {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Rep, len(n.reps))
	copy(out, n.reps)
	return out
}

// FeedPsub scripts the messages streamed to a psub on key. The connection
// closes cleanly after the last message.
func (n *Node) FeedPsub(key string, messages ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.psubFeeds[key] = messages
}

func (n *Node) PsubAcks() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.psubAcks))
	copy(out, n.psubAcks)
	return out
}

func (n *Node) PrepFrames() []PrepFrame {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]PrepFrame, len(n.prepFrames))
	copy(out, n.prepFrames)
	return out
}

func (n *Node) handleInfo(c *gin.Context) {
	n.mu.Lock()
	n.infoCalls++
	ip := n.ip
	n.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"ip": ip})
}

func (n *Node) handleSub(c *gin.Context) {
	key := c.Param("key")
	n.mu.Lock()
	status, forced := n.subStatus[key]
	body, ok := n.subReplies[key]
	n.mu.Unlock()

	if forced {
		c.String(status, "scripted status")
		return
	}
	if !ok {
		c.String(http.StatusNotFound, "no rep waiting")
		return
	}
	c.String(http.StatusOK, body)
}

func (n *Node) handleRep(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		c.String(http.StatusBadRequest, "bad body")
		return
	}
	n.mu.Lock()
	n.reps = append(n.reps, Rep{
		Key:   c.Param("key"),
		Token: c.Query("token"),
		Psub:  c.Query("psub") == "1",
		Body:  string(body),
	})
	n.mu.Unlock()
	c.Status(http.StatusOK)
}

func (n *Node) handlePsub(c *gin.Context) {
	ws, err := n.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	n.mu.Lock()
	feed := n.psubFeeds[c.Param("key")]
	confirm := n.Confirm
	n.mu.Unlock()

	for _, msg := range feed {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
			return
		}
		if confirm {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				return
			}
			n.mu.Lock()
			n.psubAcks = append(n.psubAcks, string(raw))
			n.mu.Unlock()
		}
	}

	_ = ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	_, _, _ = ws.ReadMessage() // drain until the client closes
}

func (n *Node) handlePrep(c *gin.Context) {
	ws, err := n.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	n.mu.Lock()
	confirm := n.Confirm
	prefix := n.ConfirmPrefix
	n.mu.Unlock()

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		n.mu.Lock()
		n.prepFrames = append(n.prepFrames, PrepFrame{Raw: string(raw)})
		n.mu.Unlock()
		if confirm {
			if err := ws.WriteMessage(websocket.TextMessage, []byte(prefix+string(raw))); err != nil {
				return
			}
		}
	}
}
