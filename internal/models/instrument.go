package models

// Instrument - бумага из корзины репликации
type Instrument struct {
	Code string `json:"code"` // код бумаги на KRX (6 цифр)
	Name string `json:"name"`
	// RefQuantity - количество акций в составе эталонного ETF
	// Используется для расчёта весов корзины
	RefQuantity int `json:"ref_quantity"`
}

// Реплицируемый ETF (KODEX Samsung Group)
const (
	ETFCode = "102780"
	ETFName = "KODEX Samsung Group"
)

// Якорная бумага для масштабирования корзины.
// Самая дешёвая бумага состава: фиксируем её количество и
// обратным счётом получаем общий размер инвестиции
const (
	AnchorCode     = "029780" // Samsung Card
	AnchorQuantity = 4
)

// basketUniverse - состав эталонного ETF
// Количества взяты из публикуемого файла состава (PDF эмитента)
var basketUniverse = []Instrument{
	{Code: "005930", Name: "Samsung Electronics", RefQuantity: 3845},
	{Code: "028260", Name: "Samsung C&T", RefQuantity: 601},
	{Code: "000810", Name: "Samsung Fire & Marine", RefQuantity: 202},
	{Code: "010140", Name: "Samsung Heavy Industries", RefQuantity: 4341},
	{Code: "032830", Name: "Samsung Life", RefQuantity: 560},
	{Code: "006400", Name: "Samsung SDI", RefQuantity: 391},
	{Code: "009150", Name: "Samsung Electro-Mechanics", RefQuantity: 363},
	{Code: "018260", Name: "Samsung SDS", RefQuantity: 253},
	{Code: "016360", Name: "Samsung Securities", RefQuantity: 405},
	{Code: "028050", Name: "Samsung E&A", RefQuantity: 1006},
	{Code: "012750", Name: "S-1 Corporation", RefQuantity: 160},
	{Code: "008770", Name: "Hotel Shilla", RefQuantity: 201},
	{Code: "030000", Name: "Cheil Worldwide", RefQuantity: 452},
	{Code: "029780", Name: "Samsung Card", RefQuantity: 154},
}

// BasketUniverse возвращает копию состава корзины
// Копия защищает пакетную таблицу от модификации вызывающим кодом
func BasketUniverse() []Instrument {
	out := make([]Instrument, len(basketUniverse))
	copy(out, basketUniverse)
	return out
}

// BasketCodes возвращает коды всех бумаг корзины
func BasketCodes() []string {
	codes := make([]string, len(basketUniverse))
	for i, inst := range basketUniverse {
		codes[i] = inst.Code
	}
	return codes
}

// InstrumentByCode ищет бумагу корзины по коду
func InstrumentByCode(code string) (Instrument, bool) {
	for _, inst := range basketUniverse {
		if inst.Code == code {
			return inst, true
		}
	}
	return Instrument{}, false
}

// IsBasketCode проверяет принадлежность кода корзине
func IsBasketCode(code string) bool {
	_, ok := InstrumentByCode(code)
	return ok
}
