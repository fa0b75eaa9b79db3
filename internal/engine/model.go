package engine

// Role is a member's role within a group.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

// Group is stored at groups/<id>. PasswordHash is nil for open groups.
type Group struct {
	ID                 string  `json:"id"`
	Name               string  `json:"name"`
	Description        string  `json:"description"`
	PasswordHash       *string `json:"passwordHash"`
	CreatorID          string  `json:"creator"`
	CreatedAt          int64   `json:"createdAt"`
	BlockchainVerified bool    `json:"blockchainVerified"`
	WalletAddress      string  `json:"walletAddress,omitempty"`
	Signature          string  `json:"signature,omitempty"`
}

func (g Group) HasPassword() bool {
	return g.PasswordHash != nil && *g.PasswordHash != ""
}

// Membership is stored at groups/<gid>/members/<uid>.
type Membership struct {
	Username      string `json:"username"`
	Role          Role   `json:"role"`
	JoinedAt      int64  `json:"joinedAt"`
	WalletAddress string `json:"walletAddress,omitempty"`
}

// Message is stored at groups/<gid>/messages/<id>. Timestamp is Unix ms.
type Message struct {
	ID                 string `json:"id"`
	GroupID            string `json:"groupId"`
	UserID             string `json:"user"`
	Text               string `json:"text"`
	Timestamp          int64  `json:"timestamp"`
	Attestation        string `json:"signature"`
	AttestationAddress string `json:"walletAddress"`
	BlockchainVerified bool   `json:"blockchainVerified"`
}

// GroupPointer lives in the user's group list at users/<uid>/groups/<gid>.
type GroupPointer struct {
	Name      string `json:"name"`
	CreatedAt int64  `json:"createdAt"`
	IsOwner   bool   `json:"isOwner"`
}

// GroupView is a directory entry. Partial views were built from a pointer
// while the full record was unavailable.
type GroupView struct {
	Group
	IsOwner bool
	Partial bool
}

// MessageAttestation is the out-of-band record at attestations/messages/<id>.
type MessageAttestation struct {
	Hash      string `json:"hash"`
	Timestamp int64  `json:"timestamp"`
	GroupID   string `json:"groupId"`
}

// GroupAttestation is written at attestations/groups/<gid> for verified groups.
type GroupAttestation struct {
	Hash      string `json:"hash"`
	Owner     string `json:"owner"`
	Creator   string `json:"creator"`
	Timestamp int64  `json:"timestamp"`
	Signature string `json:"signature"`
}

// WalletGroupLink is written at attestations/wallets/<addr>/groups/<gid>.
type WalletGroupLink struct {
	GroupName  string `json:"groupName"`
	Role       Role   `json:"role"`
	VerifiedAt int64  `json:"verifiedAt"`
}
