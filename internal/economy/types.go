package economy

import "fmt"

type PurchaseResult int

const (
	PurchaseAlreadyOwned PurchaseResult = iota + 1
	PurchaseInvalidCommand
	PurchaseInsufficientFunds
	PurchaseSuccess
)

var purchaseResultNames = map[PurchaseResult]string{
	PurchaseAlreadyOwned:      "already_owned",
	PurchaseInvalidCommand:    "invalid_command",
	PurchaseInsufficientFunds: "insufficient_funds",
	PurchaseSuccess:           "success",
}

func (r PurchaseResult) String() string {
	if name, ok := purchaseResultNames[r]; ok {
		return name
	}
	return fmt.Sprintf("purchase_result(%d)", int(r))
}

func (r PurchaseResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *PurchaseResult) UnmarshalText(text []byte) error {
	for k, v := range purchaseResultNames {
		if v == string(text) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("unknown purchase result %q", string(text))
}

// PurchaseOutcome is the immutable result of one purchase attempt.
// CoolPoints is the buyer's balance after the attempt; Cost is the price
// charged on success and the current price otherwise.
type PurchaseOutcome struct {
	Result     PurchaseResult `json:"result"`
	Username   string         `json:"username"`
	Command    string         `json:"command"`
	CoolPoints int64          `json:"cool_points"`
	Cost       int64          `json:"cost"`
}

type TransferResult int

const (
	TransferGranted TransferResult = iota + 1
	TransferDenied
)

func (r TransferResult) String() string {
	switch r {
	case TransferGranted:
		return "granted"
	case TransferDenied:
		return "denied"
	default:
		return fmt.Sprintf("transfer_result(%d)", int(r))
	}
}

func (r TransferResult) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *TransferResult) UnmarshalText(text []byte) error {
	switch string(text) {
	case "granted":
		*r = TransferGranted
	case "denied":
		*r = TransferDenied
	default:
		return fmt.Errorf("unknown transfer result %q", string(text))
	}
	return nil
}

type DenyReason string

const (
	DenyNone                      DenyReason = ""
	DenyInsufficientSocialCapital DenyReason = "insufficient_social_capital"
	DenyAlreadyAllowed            DenyReason = "already_allowed"
	DenyNotOwned                  DenyReason = "not_owned"
)

type TransferMode string

const (
	TransferShare TransferMode = "share"
	TransferGive  TransferMode = "give"
)

type TransferOutcome struct {
	Result      TransferResult `json:"result"`
	Reason      DenyReason     `json:"reason,omitempty"`
	Mode        TransferMode   `json:"mode"`
	Privileged  bool           `json:"privileged"`
	Actor       string         `json:"actor"`
	Beneficiary string         `json:"beneficiary"`
	Command     string         `json:"command"`
	StreetCred  int64          `json:"street_cred"`
	Cost        int64          `json:"cost"`
}

func (o TransferOutcome) Granted() bool {
	return o.Result == TransferGranted
}

type Stats struct {
	Username   string `json:"username"`
	Mana       int64  `json:"mana"`
	StreetCred int64  `json:"street_cred"`
	CoolPoints int64  `json:"cool_points"`
	Karma      int64  `json:"karma"`
	RideOrDie  string `json:"ride_or_die,omitempty"`
}

type CommandInfo struct {
	Name      string `json:"name"`
	Cost      int64  `json:"cost"`
	Health    int64  `json:"health"`
	LikeRatio int64  `json:"like_ratio"`
	Owners    int    `json:"owners"`
}

type LeaderboardKind string

const (
	LeaderboardCoolPoints LeaderboardKind = "cool_points"
	LeaderboardStreetCred LeaderboardKind = "street_cred"
	LeaderboardKarma      LeaderboardKind = "karma"
)

func ParseLeaderboardKind(s string) (LeaderboardKind, error) {
	switch LeaderboardKind(s) {
	case "", LeaderboardCoolPoints:
		return LeaderboardCoolPoints, nil
	case LeaderboardStreetCred:
		return LeaderboardStreetCred, nil
	case LeaderboardKarma:
		return LeaderboardKarma, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownLeaderboard, s)
	}
}

type LeaderboardRow struct {
	Rank     int64  `json:"rank"`
	Username string `json:"username"`
	Value    int64  `json:"value"`
}

type Summary struct {
	Users           int   `json:"users"`
	TotalCoolPoints int64 `json:"total_cool_points"`
	TotalStreetCred int64 `json:"total_street_cred"`
}

// Drop is the result of a free prize grant.
type Drop struct {
	Username string `json:"username"`
	Command  string `json:"command,omitempty"`
	Granted  bool   `json:"granted"`
}

type Reward struct {
	Username   string `json:"username"`
	Karma      int64  `json:"karma"`
	StreetCred int64  `json:"street_cred"`
	Mana       int64  `json:"mana"`
}
