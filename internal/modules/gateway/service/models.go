package service

type positionsResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		PosID  string `json:"posId"`
		InstID string `json:"instId"`
		Side   string `json:"side"`
		Qty    string `json:"qty"`
		AvgPx  string `json:"avgPx"`
		Upl    string `json:"upl"`
		UTime  string `json:"uTime"`
	} `json:"data"`
}

type accountResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		Equity      string `json:"equity"`
		MarginUsed  string `json:"marginUsed"`
		MarginAvail string `json:"marginAvail"`
		Upl         string `json:"upl"`
		DailyPnl    string `json:"dailyPnl"`
	} `json:"data"`
}

type instrumentResponse struct {
	Code string       `json:"code"`
	Msg  string       `json:"msg"`
	Data []instrument `json:"data"`
}

type instrument struct {
	InstID      string `json:"instId"`
	Name        string `json:"name"`
	TickSz      string `json:"tickSz"`
	MinSz       string `json:"minSz"`
	MaxDevTicks string `json:"maxDevTicks"`
	State       string `json:"state"`
}

type orderResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data []struct {
		OrdID string `json:"ordId"`
		SCode string `json:"sCode"`
		SMsg  string `json:"sMsg"`
	} `json:"data"`
}
