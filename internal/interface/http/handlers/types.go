package handlers

type ErrorResponse struct {
	Error string `json:"error"`
}

type InfoResponse struct {
	Id                   string `json:"id"`
	Address              string `json:"address"`
	State                string `json:"state"`
	StateCode            int    `json:"stateCode"`
	EntranceFee          string `json:"entranceFee"`
	Interval             int64  `json:"interval"`
	StartingTimestamp    int64  `json:"startingTimestamp"`
	LastDrawTimestamp    int64  `json:"lastDrawTimestamp"`
	NumberOfPlayers      int    `json:"numberOfPlayers"`
	Pot                  string `json:"pot"`
	Balance              string `json:"balance"`
	PendingRequestId     string `json:"pendingRequestId,omitempty"`
	LastWinner           string `json:"lastWinner"`
	Coordinator          string `json:"coordinator"`
	KeyHash              string `json:"keyHash"`
	SubscriptionId       uint64 `json:"subscriptionId"`
	CallbackGasLimit     uint32 `json:"callbackGasLimit"`
	RequestConfirmations uint16 `json:"requestConfirmations"`
	NumWords             uint32 `json:"numWords"`
}

type PlayersResponse struct {
	Players []string `json:"players"`
}

type PlayerResponse struct {
	Index  int    `json:"index"`
	Player string `json:"player"`
}

type JoinRequest struct {
	Player string `json:"player"`
	// Value is in ether, ie. "0.01".
	Value string `json:"value"`
}

type JoinResponse struct {
	Player string `json:"player"`
	Value  string `json:"value"`
}

type UpkeepResponse struct {
	UpkeepNeeded bool `json:"upkeepNeeded"`
	IsOpen       bool `json:"isOpen"`
	TimePassed   bool `json:"timePassed"`
	HasPlayers   bool `json:"hasPlayers"`
	HasBalance   bool `json:"hasBalance"`
}

type RequestIdResponse struct {
	RequestId string `json:"requestId"`
}

type DrawResponse struct {
	RequestId   string `json:"requestId"`
	Winner      string `json:"winner"`
	WinnerIndex int    `json:"winnerIndex"`
	RandomWord  string `json:"randomWord"`
	Prize       string `json:"prize"`
	PlayerCount int    `json:"playerCount"`
	RequestedAt int64  `json:"requestedAt"`
	CompletedAt int64  `json:"completedAt"`
}

type DrawsResponse struct {
	Draws []DrawResponse `json:"draws"`
}

type EventResponse struct {
	Type      string   `json:"type"`
	RequestId string   `json:"requestId,omitempty"`
	Player    string   `json:"player,omitempty"`
	Amount    string   `json:"amount,omitempty"`
	Players   []string `json:"players,omitempty"`
	Winner    string   `json:"winner,omitempty"`
	Prize     string   `json:"prize,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

type MintRequest struct {
	Address string `json:"address"`
	// Amount is in ether.
	Amount string `json:"amount"`
}

type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
	Ether   string `json:"ether"`
}

type FulfillRequest struct {
	RandomWords []string `json:"randomWords,omitempty"`
}
