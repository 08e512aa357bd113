package venue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"basketarb/pkg/ratelimit"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пути REST API брокера
const (
	pathHashKey          = "/uapi/hashkey"
	pathOrderCash        = "/uapi/domestic-stock/v1/trading/order-cash"
	pathOutstandingCheck = "/uapi/domestic-stock/v1/trading/inquire-psbl-rvsecncl"
	pathDailyFills       = "/uapi/domestic-stock/v1/trading/inquire-daily-ccld"
	pathBalance          = "/uapi/domestic-stock/v1/trading/inquire-balance"
)

// TR ID зависят от контура: боевой (T...) или песочница (V...)
// Песочница определяется по хосту "vts" в базовом URL
const (
	trOrderBuyLive  = "TTTC0802U"
	trOrderBuyPaper = "VTTC0802U"

	trOrderSellLive  = "TTTC0801U"
	trOrderSellPaper = "VTTC0801U"

	trInquiryLive  = "TTTC8001R"
	trInquiryPaper = "VTTC8001R"

	trBalanceLive  = "TTTC8434R"
	trBalancePaper = "VTTC8434R"
)

// Стороны ордера
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

// KISConfig содержит настройки подключения к брокерскому API
type KISConfig struct {
	BaseURL           string  // https://openapi.koreainvestment.com:9443 либо vts-контур
	AppKey            string
	AppSecret         string
	AccountNo         string  // номер счёта в формате "XXXXXXXX-XX"
	RequestsPerSecond float64 // лимит запросов (боевой контур 20, песочница 2)
}

// KISClient реализует интерфейс Venue поверх REST API
// Korea Investment & Securities
//
// Все запросы проходят через rate limiter: превышение лимита
// брокер отклоняет кодом EGW00201, что сорвало бы исполнение корзины
type KISClient struct {
	baseURL    string
	appKey     string
	appSecret  string
	cano       string // номер счёта (8 цифр)
	acntPrdtCd string // код продукта счёта (2 цифры)
	sandbox    bool

	session    *Session
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	log        *zap.SugaredLogger

	// подменяется в тестах для фиксации дат запросов
	now func() time.Time
}

// NewKISClient создаёт клиента брокерского API
// Номер счёта должен быть в формате "XXXXXXXX-XX"
func NewKISClient(cfg KISConfig, session *Session, logger *zap.SugaredLogger) (*KISClient, error) {
	cano, prdtCd, ok := strings.Cut(cfg.AccountNo, "-")
	if !ok {
		return nil, fmt.Errorf("invalid account number format: %q", cfg.AccountNo)
	}

	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 2
	}

	return &KISClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		appKey:     cfg.AppKey,
		appSecret:  cfg.AppSecret,
		cano:       cano,
		acntPrdtCd: prdtCd,
		sandbox:    strings.Contains(cfg.BaseURL, "vts"),
		session:    session,
		httpClient: GetGlobalHTTPClient().GetClient(),
		limiter:    ratelimit.NewRateLimiter(rps, rps),
		log:        logger,
		now:        time.Now,
	}, nil
}

// IsSandbox сообщает, работает ли клиент с контуром песочницы
func (c *KISClient) IsSandbox() bool {
	return c.sandbox
}

func (c *KISClient) orderTrID(side string) (string, error) {
	switch side {
	case SideBuy:
		if c.sandbox {
			return trOrderBuyPaper, nil
		}
		return trOrderBuyLive, nil
	case SideSell:
		if c.sandbox {
			return trOrderSellPaper, nil
		}
		return trOrderSellLive, nil
	default:
		return "", fmt.Errorf("unknown order side: %q", side)
	}
}

func (c *KISClient) inquiryTrID() string {
	if c.sandbox {
		return trInquiryPaper
	}
	return trInquiryLive
}

func (c *KISClient) balanceTrID() string {
	if c.sandbox {
		return trBalancePaper
	}
	return trBalanceLive
}

// SubmitMarketOrder отправляет рыночный ордер (ORD_DVSN 01, цена 0)
// Возвращает номер заявки ODNO
func (c *KISClient) SubmitMarketOrder(ctx context.Context, code, side string, quantity int) (string, error) {
	trID, err := c.orderTrID(side)
	if err != nil {
		return "", err
	}
	if quantity <= 0 {
		return "", fmt.Errorf("invalid order quantity: %d", quantity)
	}

	body := map[string]string{
		"CANO":         c.cano,
		"ACNT_PRDT_CD": c.acntPrdtCd,
		"PDNO":         code,
		"ORD_DVSN":     "01", // рыночная заявка
		"ORD_QTY":      strconv.Itoa(quantity),
		"ORD_UNPR":     "0", // для рыночной заявки цена не указывается
	}

	// POST запросы к торговым эндпоинтам требуют hashkey от тела
	hash, err := c.getHashKey(ctx, body)
	if err != nil {
		return "", fmt.Errorf("hashkey: %w", err)
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg    string `json:"msg1"`
		Output struct {
			OrderNo string `json:"ODNO"`
		} `json:"output"`
	}
	headers := map[string]string{"tr_id": trID, "hashkey": hash}
	if err := c.doPost(ctx, pathOrderCash, headers, body, &resp); err != nil {
		return "", err
	}
	if resp.RtCd != "0" {
		return "", &VenueError{Endpoint: pathOrderCash, Code: resp.RtCd, Message: resp.Msg}
	}
	if resp.Output.OrderNo == "" {
		return "", &VenueError{Endpoint: pathOrderCash, Code: "empty", Message: "no order number in response"}
	}

	c.log.Infow("order submitted",
		"code", code,
		"side", side,
		"quantity", quantity,
		"order_no", resp.Output.OrderNo)

	return resp.Output.OrderNo, nil
}

// IsOrderOutstanding проверяет наличие заявки в списке неисполненных
//
// Брокер показывает в списке только заявки с остатком: отсутствие
// номера в списке или нулевой остаток означает полное исполнение
func (c *KISClient) IsOrderOutstanding(ctx context.Context, orderNo string) (bool, error) {
	today := c.now().Format("20060102")
	params := url.Values{
		"CANO":           {c.cano},
		"ACNT_PRDT_CD":   {c.acntPrdtCd},
		"INQR_STRT_DT":   {today},
		"INQR_END_DT":    {today},
		"CTX_AREA_FK100": {""},
		"CTX_AREA_NK100": {""},
		"INQR_DVSN_1":    {"0"},
		"INQR_DVSN_2":    {"0"},
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg    string `json:"msg1"`
		Output []struct {
			OrderNo   string `json:"odno"`
			RemainQty string `json:"psbl_qty"`
		} `json:"output"`
	}
	if err := c.doGet(ctx, pathOutstandingCheck, c.inquiryTrID(), params, &resp); err != nil {
		return false, err
	}
	if resp.RtCd != "0" {
		return false, &VenueError{Endpoint: pathOutstandingCheck, Code: resp.RtCd, Message: resp.Msg}
	}

	for _, order := range resp.Output {
		if order.OrderNo != orderNo {
			continue
		}
		remain, _ := strconv.Atoi(order.RemainQty)
		return remain > 0, nil
	}

	return false, nil
}

// GetFillPrice возвращает среднюю цену и количество исполнения заявки
// из дневного журнала сделок
//
// Запись появляется с задержкой после исполнения: пока её нет
// или цена нулевая, возвращается ErrFillNotFound
func (c *KISClient) GetFillPrice(ctx context.Context, orderNo string) (float64, int, error) {
	today := c.now().Format("20060102")
	params := url.Values{
		"CANO":            {c.cano},
		"ACNT_PRDT_CD":    {c.acntPrdtCd},
		"INQR_STRT_DT":    {today},
		"INQR_END_DT":     {today},
		"SLL_BUY_DVSN_CD": {"00"},
		"INQR_DVSN":       {"00"},
		"PDNO":            {""},
		"CCLD_DVSN":       {"01"}, // только исполненные
		"ORD_GNO_BRNO":    {""},
		"ODNO":            {""},
		"INQR_DVSN_3":     {"00"},
		"INQR_DVSN_1":     {""},
		"CTX_AREA_FK100":  {""},
		"CTX_AREA_NK100":  {""},
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg    string `json:"msg1"`
		Output []struct {
			OrderNo   string `json:"odno"`
			AvgPrice  string `json:"avg_prvs"`
			FilledQty string `json:"tot_ccld_qty"`
		} `json:"output1"`
	}
	if err := c.doGet(ctx, pathDailyFills, c.inquiryTrID(), params, &resp); err != nil {
		return 0, 0, err
	}
	if resp.RtCd != "0" {
		return 0, 0, &VenueError{Endpoint: pathDailyFills, Code: resp.RtCd, Message: resp.Msg}
	}

	for _, fill := range resp.Output {
		if fill.OrderNo != orderNo {
			continue
		}
		price, _ := strconv.ParseFloat(fill.AvgPrice, 64)
		qty, _ := strconv.Atoi(fill.FilledQty)
		if price > 0 && qty > 0 {
			return price, qty, nil
		}
	}

	return 0, 0, ErrFillNotFound
}

// GetHoldings возвращает бумаги на счёте с ненулевым остатком
func (c *KISClient) GetHoldings(ctx context.Context) ([]Holding, error) {
	params := url.Values{
		"CANO":                  {c.cano},
		"ACNT_PRDT_CD":          {c.acntPrdtCd},
		"AFHR_FLPR_YN":          {"N"},
		"OFL_YN":                {""},
		"INQR_DVSN":             {"02"}, // по бумагам
		"UNPR_DVSN":             {"01"},
		"FUND_STTL_ICLD_YN":     {"N"},
		"FNCG_AMT_AUTO_RDPT_YN": {"N"},
		"PRCS_DVSN":             {"01"},
		"CTX_AREA_FK100":        {""},
		"CTX_AREA_NK100":        {""},
	}

	var resp struct {
		RtCd   string `json:"rt_cd"`
		Msg    string `json:"msg1"`
		Output []struct {
			Code     string `json:"pdno"`
			Name     string `json:"prdt_name"`
			Quantity string `json:"hldg_qty"`
		} `json:"output1"`
	}
	if err := c.doGet(ctx, pathBalance, c.balanceTrID(), params, &resp); err != nil {
		return nil, err
	}
	if resp.RtCd != "0" {
		return nil, &VenueError{Endpoint: pathBalance, Code: resp.RtCd, Message: resp.Msg}
	}

	holdings := make([]Holding, 0, len(resp.Output))
	for _, stock := range resp.Output {
		qty, _ := strconv.Atoi(stock.Quantity)
		if qty <= 0 {
			continue
		}
		holdings = append(holdings, Holding{
			Code:     stock.Code,
			Name:     stock.Name,
			Quantity: qty,
		})
	}

	return holdings, nil
}

// getHashKey запрашивает hashkey для тела POST запроса
func (c *KISClient) getHashKey(ctx context.Context, body map[string]string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+pathHashKey, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("content-type", "application/json; charset=utf-8")
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", &VenueError{Endpoint: pathHashKey, Code: strconv.Itoa(resp.StatusCode), Message: string(raw)}
	}

	var parsed struct {
		Hash string `json:"HASH"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", err
	}
	if parsed.Hash == "" {
		return "", &VenueError{Endpoint: pathHashKey, Code: "empty", Message: "no HASH in response"}
	}

	return parsed.Hash, nil
}

// doPost выполняет авторизованный POST запрос к торговому эндпоинту
func (c *KISClient) doPost(ctx context.Context, path string, headers map[string]string, body map[string]string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	c.setAuthHeaders(req)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.decodeResponse(req, path, out)
}

// doGet выполняет авторизованный GET запрос к торговому эндпоинту
func (c *KISClient) doGet(ctx context.Context, path, trID string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	c.setAuthHeaders(req)
	req.Header.Set("tr_id", trID)

	return c.decodeResponse(req, path, out)
}

func (c *KISClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("content-type", "application/json; charset=utf-8")
	req.Header.Set("authorization", "Bearer "+c.session.AccessToken())
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
}

func (c *KISClient) decodeResponse(req *http.Request, path string, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return &VenueError{
			Endpoint: path,
			Code:     strconv.Itoa(resp.StatusCode),
			Message:  string(raw),
		}
	}

	return json.Unmarshal(raw, out)
}
