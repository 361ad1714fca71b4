package session

import (
	"sort"

	"github.com/gofrs/uuid/v5"

	"github.com/paintroom/paintroom/internal/errs"
	"github.com/paintroom/paintroom/internal/model"
	"github.com/paintroom/paintroom/internal/protocol"
)

// Outbox delivers server events to one participant. Implementations must not
// block; a slow consumer is the transport's problem, not the session's.
type Outbox interface {
	Send(ev protocol.ServerEvent)
}

type participant struct {
	user model.User
	out  Outbox
}

// registry tracks connected participants. Not safe for concurrent use; the
// session serializes access.
type registry struct {
	byID    map[uuid.UUID]*participant
	joinSeq int64
}

func newRegistry() *registry {
	return &registry{byID: make(map[uuid.UUID]*participant)}
}

// add registers a participant, enforcing display-name uniqueness within the
// session and assigning the join sequence that orders the user list.
func (r *registry) add(u model.User, out Outbox) (*participant, error) {
	for _, p := range r.byID {
		if p.user.Name == u.Name {
			return nil, errs.ErrNameTaken
		}
	}
	r.joinSeq++
	u.JoinSeq = r.joinSeq
	p := &participant{user: u, out: out}
	r.byID[u.ID] = p
	return p, nil
}

func (r *registry) remove(id uuid.UUID) *participant {
	p, ok := r.byID[id]
	if !ok {
		return nil
	}
	delete(r.byID, id)
	return p
}

func (r *registry) get(id uuid.UUID) (*participant, error) {
	p, ok := r.byID[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return p, nil
}

// summaries returns participants ordered by join sequence.
func (r *registry) summaries() []model.UserSummary {
	ps := make([]*participant, 0, len(r.byID))
	for _, p := range r.byID {
		ps = append(ps, p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].user.JoinSeq < ps[j].user.JoinSeq })
	out := make([]model.UserSummary, len(ps))
	for i, p := range ps {
		out[i] = model.UserSummary{Name: p.user.Name, Role: p.user.Role}
	}
	return out
}

// broadcast sends ev to every participant except the excluded ids.
func (r *registry) broadcast(ev protocol.ServerEvent, except ...uuid.UUID) {
	for id, p := range r.byID {
		skip := false
		for _, x := range except {
			if id == x {
				skip = true
				break
			}
		}
		if !skip {
			p.out.Send(ev)
		}
	}
}

func (r *registry) size() int { return len(r.byID) }
