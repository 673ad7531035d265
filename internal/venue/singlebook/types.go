package singlebook

// marketsResponse is one page of the venue's /markets listing.
type marketsResponse struct {
	Markets []apiMarket `json:"markets"`
	Cursor  string      `json:"cursor"`
}

type apiMarket struct {
	Ticker         string `json:"ticker"`
	EventTicker    string `json:"event_ticker"`
	Title          string `json:"title"`
	YesSubTitle    string `json:"yes_sub_title"`
	Status         string `json:"status"`
	CloseTimeISO   string `json:"close_time"`
	Underlying     string `json:"underlying_asset"`
}

type orderbookResponse struct {
	Orderbook struct {
		Yes [][2]int64 `json:"yes"` // [price_cents, size]
		No  [][2]int64 `json:"no"`
	} `json:"orderbook"`
}
