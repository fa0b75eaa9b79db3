package engine

import "github.com/dmitrijs2005/groupsync/internal/store"

func groupPath(gid string) store.Path {
	return store.NewPath("groups", gid)
}

func messagesPath(gid string) store.Path {
	return groupPath(gid).Child("messages")
}

func messagePath(gid, mid string) store.Path {
	return messagesPath(gid).Child(mid)
}

func membersPath(gid string) store.Path {
	return groupPath(gid).Child("members")
}

func memberPath(gid, uid string) store.Path {
	return membersPath(gid).Child(uid)
}

func userGroupsPath(uid string) store.Path {
	return store.NewPath("users", uid, "groups")
}

func userGroupPath(uid, gid string) store.Path {
	return userGroupsPath(uid).Child(gid)
}

func lastLogoutPath(uid string) store.Path {
	return store.NewPath("users", uid, "lastLogout")
}

func messageAttestationPath(mid string) store.Path {
	return store.NewPath("attestations", "messages", mid)
}

func groupAttestationPath(gid string) store.Path {
	return store.NewPath("attestations", "groups", gid)
}

func walletGroupPath(address, gid string) store.Path {
	return store.NewPath("attestations", "wallets", address, "groups", gid)
}
