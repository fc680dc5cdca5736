// This code is available on the terms of the project LICENSE.md file,
// also available online at https://blueoakcouncil.org/license/1.0.0.

package rpcserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tonwallet/walletcore/wallet"
)

// outBufferSize is the number of notifications queued for a client. A client
// that falls further behind is disconnected.
const outBufferSize = 128

const writeWait = 5 * time.Second

var (
	// Time allowed to read the next pong message from the peer. A var to
	// facilitate testing.
	pongWait = 60 * time.Second
	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{}

// wsClient is a websocket connection receiving the update feed.
type wsClient struct {
	ip   string
	conn *websocket.Conn
	log  wallet.Logger
	out  chan []byte

	quitOnce sync.Once
	quit     chan struct{}
}

func newWSClient(ip string, conn *websocket.Conn, log wallet.Logger) *wsClient {
	return &wsClient{
		ip:   ip,
		conn: conn,
		log:  log,
		out:  make(chan []byte, outBufferSize),
		quit: make(chan struct{}),
	}
}

// send queues the message without blocking.
func (c *wsClient) send(b []byte) {
	select {
	case c.out <- b:
	case <-c.quit:
	default:
		c.log.Warnf("Websocket client %s is too slow. Disconnecting.", c.ip)
		c.disconnect()
	}
}

func (c *wsClient) disconnect() {
	c.quitOnce.Do(func() { close(c.quit) })
}

// run writes the queued messages and pings until the client disconnects.
func (c *wsClient) run() {
	defer c.conn.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.readLoop()
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
out:
	for {
		select {
		case b := <-c.out:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				c.log.Debugf("Websocket write error for %s: %v", c.ip, err)
				break out
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.Debugf("Websocket ping error for %s: %v", c.ip, err)
				break out
			}
		case <-c.quit:
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			break out
		}
	}
	c.disconnect()
	// Closing unblocks the read loop.
	c.conn.Close()
	wg.Wait()
}

// readLoop discards the client's messages, keeping the read deadline
// extended while pongs arrive.
func (c *wsClient) readLoop() {
	defer c.disconnect()
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseGoingAway,
				websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				c.log.Debugf("Websocket receive error from %s: %v", c.ip, err)
			}
			return
		}
	}
}

// handleWS upgrades the request and feeds updates to the new client until it
// disconnects.
func (s *RPCServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade responds with the error.
		s.log.Errorf("ws connection error: %v", err)
		return
	}
	cl := newWSClient(r.RemoteAddr, conn, s.log)
	s.clientMtx.Lock()
	s.nextCID++
	cid := s.nextCID
	s.clients[cid] = cl
	s.clientMtx.Unlock()
	s.log.Debugf("New websocket client %s", cl.ip)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		cl.run()
		s.clientMtx.Lock()
		delete(s.clients, cid)
		s.clientMtx.Unlock()
		s.log.Tracef("Disconnected websocket client %s", cl.ip)
	}()
}
