package market

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Транзакции потока котировок брокера
const (
	TrTradePrice = "H0STCNT0" // сделки по бумаге (цена исполнения)
	TrNAV        = "H0STNAV0" // индикативный NAV ETF
	trPingPong   = "PINGPONG"
)

// Индексы полей в каретированном payload потока
// Формат кадра данных: 0|TR_ID|COUNT|f0^f1^f2^...
const (
	fieldCode       = 0 // код бумаги (оба типа кадров)
	fieldNAVValue   = 1 // NAV в кадре H0STNAV0
	fieldTradePrice = 2 // цена сделки в кадре H0STCNT0
)

// Tick - разобранное событие потока котировок
type Tick struct {
	TrID  string
	Code  string
	Value float64
}

// ParseFrame разбирает текстовый кадр потока
//
// Кадры данных начинаются с '0' (открытые) или '1' (шифрованные),
// секции разделены '|', поля payload - '^'. Всё остальное - служебный
// JSON (подтверждение подписки, PINGPONG), для него ok == false
func ParseFrame(raw []byte) (Tick, bool) {
	if len(raw) == 0 || (raw[0] != '0' && raw[0] != '1') {
		return Tick{}, false
	}

	parts := strings.Split(string(raw), "|")
	if len(parts) < 4 {
		return Tick{}, false
	}

	trID := parts[1]
	fields := strings.Split(parts[3], "^")

	var valueIdx int
	switch trID {
	case TrTradePrice:
		valueIdx = fieldTradePrice
	case TrNAV:
		valueIdx = fieldNAVValue
	default:
		return Tick{}, false
	}

	if len(fields) <= valueIdx {
		return Tick{}, false
	}

	value, err := strconv.ParseFloat(fields[valueIdx], 64)
	if err != nil {
		return Tick{}, false
	}

	return Tick{TrID: trID, Code: fields[fieldCode], Value: value}, true
}

// isPingPong проверяет служебный кадр PINGPONG
func isPingPong(raw []byte) bool {
	var msg struct {
		Header struct {
			TrID string `json:"tr_id"`
		} `json:"header"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return false
	}
	return msg.Header.TrID == trPingPong
}

// subscribeRequest - запрос подписки на транзакцию потока
type subscribeRequest struct {
	Header struct {
		ApprovalKey string `json:"approval_key"`
		CustType    string `json:"custtype"`
		TrType      string `json:"tr_type"`
		ContentType string `json:"content-type"`
	} `json:"header"`
	Body struct {
		Input struct {
			TrID  string `json:"tr_id"`
			TrKey string `json:"tr_key"`
		} `json:"input"`
	} `json:"body"`
}

func newSubscribeRequest(approvalKey, trID, code string) subscribeRequest {
	var req subscribeRequest
	req.Header.ApprovalKey = approvalKey
	req.Header.CustType = "P"
	req.Header.TrType = "1"
	req.Header.ContentType = "utf-8"
	req.Body.Input.TrID = trID
	req.Body.Input.TrKey = code
	return req
}

// Subscription - пара транзакция/бумага для подписки
type Subscription struct {
	TrID string
	Code string
}

// Состояния соединения потока
type feedState int32

const (
	feedDisconnected feedState = iota
	feedConnecting
	feedConnected
	feedReconnecting
	feedClosed
)

func (s feedState) String() string {
	switch s {
	case feedDisconnected:
		return "disconnected"
	case feedConnecting:
		return "connecting"
	case feedConnected:
		return "connected"
	case feedReconnecting:
		return "reconnecting"
	case feedClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// FeedConfig - настройки клиента потока котировок
type FeedConfig struct {
	URL            string
	ConnectTimeout time.Duration
	// Задержки переподключения: экспоненциальный рост от Initial до Max
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	// 0 = переподключаться бесконечно
	ReconnectMaxRetries int
}

// DefaultFeedConfig возвращает настройки по умолчанию
func DefaultFeedConfig(url string) FeedConfig {
	return FeedConfig{
		URL:                   url,
		ConnectTimeout:        10 * time.Second,
		ReconnectInitialDelay: 2 * time.Second,
		ReconnectMaxDelay:     16 * time.Second,
		ReconnectMaxRetries:   0,
	}
}

// FeedClient - клиент потока котировок с автоматическим переподключением
//
// После разрыва соединения переподключается с exponential backoff и
// восстанавливает все подписки. Разобранные тики отдаёт в OnTick,
// о разрывах сообщает через OnDisconnect (для алертов)
type FeedClient struct {
	cfg         FeedConfig
	approvalKey string
	log         *zap.SugaredLogger

	conn   *websocket.Conn
	connMu sync.RWMutex

	state      int32 // atomic feedState
	retryCount int32 // atomic

	subs   []Subscription
	subsMu sync.RWMutex

	closeChan chan struct{}
	closeOnce sync.Once

	onTick       func(Tick)
	onConnect    func()
	onDisconnect func(error)
	callbackMu   sync.RWMutex
}

// NewFeedClient создаёт клиент потока
// approvalKey выдаётся брокером отдельным REST запросом
func NewFeedClient(cfg FeedConfig, approvalKey string, log *zap.SugaredLogger) *FeedClient {
	return &FeedClient{
		cfg:         cfg,
		approvalKey: approvalKey,
		log:         log,
		closeChan:   make(chan struct{}),
	}
}

// SetOnTick устанавливает обработчик тиков
func (c *FeedClient) SetOnTick(handler func(Tick)) {
	c.callbackMu.Lock()
	c.onTick = handler
	c.callbackMu.Unlock()
}

// SetOnConnect устанавливает обработчик успешного подключения
func (c *FeedClient) SetOnConnect(handler func()) {
	c.callbackMu.Lock()
	c.onConnect = handler
	c.callbackMu.Unlock()
}

// SetOnDisconnect устанавливает обработчик разрыва соединения
func (c *FeedClient) SetOnDisconnect(handler func(error)) {
	c.callbackMu.Lock()
	c.onDisconnect = handler
	c.callbackMu.Unlock()
}

// Subscribe добавляет подписку
// До Connect подписки только накапливаются, после - отправляются сразу
func (c *FeedClient) Subscribe(trID, code string) error {
	c.subsMu.Lock()
	c.subs = append(c.subs, Subscription{TrID: trID, Code: code})
	c.subsMu.Unlock()

	if c.State() != feedConnected {
		return nil
	}
	return c.send(newSubscribeRequest(c.approvalKey, trID, code))
}

// State возвращает текущее состояние соединения
func (c *FeedClient) State() feedState {
	return feedState(atomic.LoadInt32(&c.state))
}

// IsConnected проверяет активность соединения
func (c *FeedClient) IsConnected() bool {
	return c.State() == feedConnected
}

// Connect устанавливает соединение и запускает чтение
func (c *FeedClient) Connect() error {
	select {
	case <-c.closeChan:
		return fmt.Errorf("feed client is closed")
	default:
	}

	atomic.StoreInt32(&c.state, int32(feedConnecting))

	if err := c.dial(); err != nil {
		atomic.StoreInt32(&c.state, int32(feedDisconnected))
		return err
	}

	atomic.StoreInt32(&c.state, int32(feedConnected))
	atomic.StoreInt32(&c.retryCount, 0)

	c.callbackMu.RLock()
	onConnect := c.onConnect
	c.callbackMu.RUnlock()
	if onConnect != nil {
		onConnect()
	}

	go c.readPump()

	c.log.Infow("feed connected", "url", c.cfg.URL)
	return nil
}

// dial подключается и восстанавливает подписки
func (c *FeedClient) dial() error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.ConnectTimeout}

	conn, _, err := dialer.Dial(c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("feed dial: %w", err)
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()

	return c.resubscribe()
}

// resubscribe отправляет все накопленные подписки
func (c *FeedClient) resubscribe() error {
	c.subsMu.RLock()
	subs := make([]Subscription, len(c.subs))
	copy(subs, c.subs)
	c.subsMu.RUnlock()

	for _, sub := range subs {
		if err := c.send(newSubscribeRequest(c.approvalKey, sub.TrID, sub.Code)); err != nil {
			return fmt.Errorf("resubscribe %s/%s: %w", sub.TrID, sub.Code, err)
		}
	}

	if len(subs) > 0 {
		c.log.Infow("feed subscriptions restored", "count", len(subs))
	}
	return nil
}

// send сериализует и отправляет сообщение
func (c *FeedClient) send(msg interface{}) error {
	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return fmt.Errorf("feed not connected")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// readPump читает кадры до разрыва соединения
func (c *FeedClient) readPump() {
	for {
		select {
		case <-c.closeChan:
			return
		default:
		}

		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn == nil {
			return
		}

		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(err)
			return
		}

		c.handleFrame(raw)
	}
}

// handleFrame обрабатывает один входящий кадр
func (c *FeedClient) handleFrame(raw []byte) {
	if tick, ok := ParseFrame(raw); ok {
		c.callbackMu.RLock()
		onTick := c.onTick
		c.callbackMu.RUnlock()
		if onTick != nil {
			onTick(tick)
		}
		return
	}

	// Служебные кадры: PINGPONG нужно вернуть эхом, иначе брокер
	// закрывает соединение
	if isPingPong(raw) {
		c.connMu.RLock()
		conn := c.conn
		c.connMu.RUnlock()
		if conn != nil {
			if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
				c.log.Warnw("pingpong echo failed", "error", err)
			}
		}
	}
}

// handleDisconnect обрабатывает разрыв и запускает переподключение
func (c *FeedClient) handleDisconnect(err error) {
	select {
	case <-c.closeChan:
		return
	default:
	}

	state := c.State()
	if state == feedReconnecting || state == feedClosed {
		return
	}
	atomic.StoreInt32(&c.state, int32(feedReconnecting))

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	c.callbackMu.RLock()
	onDisconnect := c.onDisconnect
	c.callbackMu.RUnlock()
	if onDisconnect != nil {
		onDisconnect(err)
	}

	c.log.Warnw("feed disconnected", "error", err)

	go c.reconnectLoop()
}

// reconnectLoop переподключается с exponential backoff
func (c *FeedClient) reconnectLoop() {
	delay := c.cfg.ReconnectInitialDelay

	for {
		select {
		case <-c.closeChan:
			return
		default:
		}

		retry := atomic.AddInt32(&c.retryCount, 1)
		if c.cfg.ReconnectMaxRetries > 0 && int(retry) > c.cfg.ReconnectMaxRetries {
			c.log.Errorw("feed reconnect attempts exhausted", "attempts", c.cfg.ReconnectMaxRetries)
			atomic.StoreInt32(&c.state, int32(feedDisconnected))
			return
		}

		c.log.Infow("feed reconnecting", "delay", delay, "attempt", retry)

		select {
		case <-c.closeChan:
			return
		case <-time.After(delay):
		}

		if err := c.dial(); err != nil {
			c.log.Warnw("feed reconnect failed", "error", err)
			delay *= 2
			if delay > c.cfg.ReconnectMaxDelay {
				delay = c.cfg.ReconnectMaxDelay
			}
			continue
		}

		atomic.StoreInt32(&c.state, int32(feedConnected))
		atomic.StoreInt32(&c.retryCount, 0)

		c.callbackMu.RLock()
		onConnect := c.onConnect
		c.callbackMu.RUnlock()
		if onConnect != nil {
			onConnect()
		}

		c.log.Infow("feed reconnected")
		go c.readPump()
		return
	}
}

// Close закрывает соединение и останавливает переподключения
func (c *FeedClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeChan)
		atomic.StoreInt32(&c.state, int32(feedClosed))

		c.connMu.Lock()
		if c.conn != nil {
			err = c.conn.Close()
			c.conn = nil
		}
		c.connMu.Unlock()
	})
	return err
}
