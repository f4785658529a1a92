package entities

// Voter is the identity snapshot returned to a signed-in voter.
type Voter struct {
	ID       string `json:"id"`
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	District string `json:"district"`
	HasVoted bool   `json:"hasVoted"`
}

type AdminCredentials struct {
	Username string
	Password string
}
