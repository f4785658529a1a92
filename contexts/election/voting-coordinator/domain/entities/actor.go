package entities

type ActorKind string

const (
	ActorAnonymous ActorKind = "anonymous"
	ActorVoter     ActorKind = "voter"
	ActorAdmin     ActorKind = "admin"
)

// Actor is the election's view of whoever holds a session.
type Actor struct {
	Kind     ActorKind
	VoterID  string
	Username string
}
