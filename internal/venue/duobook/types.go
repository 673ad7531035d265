package duobook

// market is one entry from the venue's markets listing: a condition with a
// YES token and a NO token, each independently orderable.
type market struct {
	ConditionID  string `json:"condition_id"`
	Question     string `json:"question"`
	Slug         string `json:"slug"`
	EndDateISO   string `json:"end_date_iso"`
	YesTokenID   string `json:"yes_token_id"`
	NoTokenID    string `json:"no_token_id"`
}

type marketsResponse struct {
	Data   []market `json:"data"`
	Cursor string   `json:"next_cursor"`
}

// tokenBook is one side's raw order book, as returned by the batch
// orderbooks endpoint keyed by token id.
type tokenBook struct {
	Bids []bookLevel `json:"bids"`
	Asks []bookLevel `json:"asks"`
}

type bookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// rawPair is what GetOrderbook returns: the YES and NO books for one market,
// fetched together in a single batch request.
type rawPair struct {
	Yes tokenBook
	No  tokenBook
}
