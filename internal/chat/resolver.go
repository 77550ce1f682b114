package chat

import "github.com/agrinet/agrichat/internal/domain"

// Resolve maps an incoming conversation reference onto the user's room
// list. The reference is either a room id, a counterpart user id, or
// empty. Resolution is deterministic for a given (ref, rooms) pair and
// never touches the network; the caller acts on the returned kind.
//
// Priority order:
//  1. ref equals an existing room id: that room.
//  2. ref names a counterpart who already shares a room with the user:
//     redirect to that room.
//  3. ref names a counterpart with no shared room yet: create one.
//  4. anything else (empty or unrecognized): most recent room, or none.
func Resolve(ref string, rooms []domain.ChatRoom) domain.Resolution {
	if ref != "" {
		for _, r := range rooms {
			if r.ID == ref {
				return domain.Resolution{Kind: domain.ResolvedExisting, RoomID: r.ID, CounterpartID: r.Counterpart.ID}
			}
		}
		if domain.IsCounterpartID(ref) {
			for _, r := range rooms {
				if r.Counterpart.ID == ref {
					return domain.Resolution{Kind: domain.ResolvedRedirect, RoomID: r.ID, CounterpartID: ref}
				}
			}
			return domain.Resolution{Kind: domain.ResolveCreate, CounterpartID: ref}
		}
	}
	if len(rooms) > 0 {
		return domain.Resolution{Kind: domain.ResolvedExisting, RoomID: rooms[0].ID, CounterpartID: rooms[0].Counterpart.ID}
	}
	return domain.Resolution{Kind: domain.ResolvedNone}
}
