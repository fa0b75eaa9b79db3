package engine

import (
	"fmt"

	"github.com/dmitrijs2005/groupsync/internal/common"
	"github.com/dmitrijs2005/groupsync/internal/cryptox"
	"github.com/dmitrijs2005/groupsync/internal/identity"
)

var newID = common.NewID

func messagePayload(m Message) string {
	return fmt.Sprintf("Message: %s | Group: %s | User: %s | Time: %d", m.Text, m.GroupID, m.UserID, m.Timestamp)
}

func groupPayload(g Group, address string) string {
	return fmt.Sprintf("Create Group: %s | ID: %s | Creator: %s | Wallet: %s | Time: %d",
		g.Name, g.ID, g.CreatorID, address, g.CreatedAt)
}

// recordMessageAttestation writes the content hash of a delivered message.
// Failures are logged only. Called off the loop.
func (e *Engine) recordMessageAttestation(m Message) {
	hash, err := cryptox.ContentHash(m)
	if err != nil {
		e.log.Warn(e.ctx, "hash message", "message_id", m.ID, "error", err)
		return
	}
	rec := MessageAttestation{Hash: hash, Timestamp: m.Timestamp, GroupID: m.GroupID}
	if err := e.store.Put(e.ctx, messageAttestationPath(m.ID), rec); err != nil {
		e.log.Warn(e.ctx, "message attestation not recorded", "message_id", m.ID, "error", err)
	}
}

// recordGroupVerification writes the verification record and the wallet
// link for a verified group. Failures are logged only. Called off the loop.
func (e *Engine) recordGroupVerification(g Group) {
	if !g.BlockchainVerified || g.WalletAddress == "" || g.WalletAddress == identity.NoAddress {
		return
	}
	hash, err := cryptox.ContentHash(g)
	if err != nil {
		e.log.Warn(e.ctx, "hash group", "group_id", g.ID, "error", err)
		return
	}

	rec := GroupAttestation{
		Hash:      hash,
		Owner:     g.WalletAddress,
		Creator:   g.CreatorID,
		Timestamp: g.CreatedAt,
		Signature: g.Signature,
	}
	if err := e.store.Put(e.ctx, groupAttestationPath(g.ID), rec); err != nil {
		e.log.Warn(e.ctx, "group verification not recorded", "group_id", g.ID, "error", err)
		return
	}

	link := WalletGroupLink{GroupName: g.Name, Role: RoleOwner, VerifiedAt: e.nowMillis()}
	if err := e.store.Put(e.ctx, walletGroupPath(g.WalletAddress, g.ID), link); err != nil {
		e.log.Warn(e.ctx, "wallet link not recorded", "group_id", g.ID, "error", err)
		return
	}
	e.log.Info(e.ctx, "group verification recorded", "group_id", g.ID, "wallet", g.WalletAddress)
}
