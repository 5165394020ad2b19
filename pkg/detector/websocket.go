package detector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"RooftopSolar/internal/entity"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var errNotConnected = errors.New("not connected to rooftop detection service")

type websocketDetector struct {
	log           *logrus.Logger
	url           string
	minConfidence float64

	conn         *websocket.Conn
	mu           sync.Mutex
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
	done         chan struct{}
	closeOnce    sync.Once
}

// NewWebsocketDetector keeps one connection to a detection service that
// answers each binary image frame with a JSON detection message. The first
// connection attempt runs in the background; Detect reconnects on demand.
func NewWebsocketDetector(log *logrus.Logger, url string, minConfidence float64) IDetector {
	d := &websocketDetector{
		log:           log,
		url:           url,
		minConfidence: minConfidence,
		pingInterval:  30 * time.Second,
		readTimeout:   60 * time.Second,
		writeTimeout:  10 * time.Second,
		done:          make(chan struct{}),
	}

	go d.connectInBackground()

	return d
}

func (d *websocketDetector) Fingerprint() string {
	return fingerprint(DriverWebsocket, d.url, d.minConfidence)
}

func (d *websocketDetector) Name() string {
	return DriverWebsocket
}

func (d *websocketDetector) connectInBackground() {
	if err := d.Reconnect(); err != nil {
		d.log.Warnf("Initial connection to rooftop detection service failed: %v. Will retry on demand.", err)
		return
	}
	d.log.Info("Successfully connected to rooftop detection service")
}

func (d *websocketDetector) Reconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	select {
	case <-d.done:
		return errors.New("detector closed")
	default:
	}

	if d.conn != nil {
		d.conn.Close()
		d.conn = nil
	}

	if d.url == "" {
		return errors.New("URL for rooftop detection not configured")
	}

	d.log.Infof("Connecting to rooftop detection service at %s", d.url)

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(d.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", d.url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(d.writeTimeout))
		if err != nil {
			d.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	d.conn = conn
	go d.keepAlive(conn)

	return nil
}

func (d *websocketDetector) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(d.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.done:
			return
		case <-ticker.C:
		}

		d.mu.Lock()
		if d.conn != conn {
			d.mu.Unlock()
			return
		}

		err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(d.writeTimeout))
		if err != nil {
			d.log.Warnf("Ping failed for rooftop detection service, marking connection as dead: %v", err)
			d.conn = nil
			conn.Close()
			d.mu.Unlock()
			return
		}
		d.mu.Unlock()
	}
}

func (d *websocketDetector) connection() (*websocket.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil, errNotConnected
	}
	return d.conn, nil
}

func (d *websocketDetector) dropConnection(conn *websocket.Conn) {
	if d.conn == conn {
		d.conn = nil
	}
	conn.Close()
}

// Detect sends one frame and waits for its answer. The mutex is held for the
// whole round trip so replies cannot interleave between requests.
func (d *websocketDetector) Detect(ctx context.Context, img entity.Image) (entity.DetectionResult, error) {
	conn, err := d.connection()
	if err != nil {
		if err := d.Reconnect(); err != nil {
			return entity.DetectionResult{}, fmt.Errorf("cannot connect to rooftop detection service: %w", err)
		}
		if conn, err = d.connection(); err != nil {
			return entity.DetectionResult{}, err
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return entity.DetectionResult{}, errNotConnected
	}
	conn = d.conn

	if err := ctx.Err(); err != nil {
		return entity.DetectionResult{}, err
	}

	defer d.watchContext(ctx, conn)()

	deadline := time.Now().Add(d.readTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))

	d.log.Debugf("Sending rooftop frame of size: %d bytes", len(img.Data))
	if err := conn.WriteMessage(websocket.BinaryMessage, img.Data); err != nil {
		d.dropConnection(conn)
		if ctx.Err() != nil {
			return entity.DetectionResult{}, ctx.Err()
		}
		return entity.DetectionResult{}, fmt.Errorf("error sending rooftop frame: %w", err)
	}

	conn.SetReadDeadline(deadline)

	_, message, err := conn.ReadMessage()
	if err != nil {
		d.dropConnection(conn)
		if ctx.Err() != nil {
			return entity.DetectionResult{}, ctx.Err()
		}
		return entity.DetectionResult{}, fmt.Errorf("error reading rooftop message: %w", err)
	}

	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})

	var resp wireResponse
	if err := json.Unmarshal(message, &resp); err != nil {
		return entity.DetectionResult{}, fmt.Errorf("%w: error unmarshaling rooftop response: %v", ErrUnusableResult, err)
	}

	result, err := resp.toResult(d.minConfidence)
	if err != nil {
		return entity.DetectionResult{}, err
	}

	d.log.Debugf("Rooftop detection result: %d boxes", result.Len())

	return result, nil
}

// watchContext closes conn when ctx ends before the returned stop function is
// called, which unblocks a pending read. Stop must be called with d.mu held;
// it drops the connection if the watcher closed it.
func (d *websocketDetector) watchContext(ctx context.Context, conn *websocket.Conn) func() {
	stop := make(chan struct{})
	closed := make(chan bool, 1)

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
			closed <- true
		case <-stop:
			closed <- false
		}
	}()

	return func() {
		close(stop)
		if <-closed {
			d.dropConnection(conn)
		}
	}
}

func (d *websocketDetector) CheckHealth(ctx context.Context) error {
	if _, err := d.connection(); err == nil {
		return nil
	}
	return d.Reconnect()
}

func (d *websocketDetector) Close() error {
	d.closeOnce.Do(func() {
		close(d.done)
	})

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn != nil {
		err := d.conn.Close()
		d.conn = nil
		return err
	}
	return nil
}
