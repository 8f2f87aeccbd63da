package server

import (
	"time"

	"github.com/parlorgames/parlord/pkg/errkind"
)

// RequestJoin files a rate-limited join request against a private room. The
// leader is notified through a unicast join_request event.
func (s *Server) RequestJoin(code, userID, userName string) error {
	r, err := s.roomByCode(code)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Settings.IsPrivate {
		return errkind.New(errkind.BadRequest, "this room is not private; join it directly")
	}
	if r.user(userID) != nil {
		return errkind.New(errkind.Conflict, "you are already in this room")
	}
	if r.KickedUserIDs[userID] {
		return errkind.New(errkind.Forbidden, "you have been removed from this room")
	}

	req := r.JoinRequests[userID]
	if req != nil {
		if wait := s.cfg.JoinRequestCooldown - time.Since(req.RequestedAt); wait > 0 {
			return errkind.New(errkind.TooManyRequests,
				"please wait %d seconds before requesting again", int(wait.Seconds())+1)
		}
		if req.Attempts >= s.cfg.JoinRequestMaxAttempts {
			return errkind.New(errkind.TooManyRequests, "maximum join requests reached for this room")
		}
		req.Attempts++
		req.RequestedAt = time.Now()
		req.RequesterName = userName
	} else {
		req = &JoinRequest{
			RequesterID:   userID,
			RequesterName: userName,
			RequestedAt:   time.Now(),
			Attempts:      1,
		}
		r.JoinRequests[userID] = req
	}

	s.log.Infof("join request from %s for room %s (attempt %d)", userID, r.ID, req.Attempts)
	s.emitter.EmitToUser(r.LeaderID, EventJoinRequest, map[string]interface{}{
		"roomId":        r.ID,
		"requesterId":   userID,
		"requesterName": userName,
		"attempts":      req.Attempts,
	})
	return nil
}

// AcceptJoin lets the leader admit a requester, bypassing the private check.
// The request entry is removed on success.
func (s *Server) AcceptJoin(roomID, byUserID, requesterID string) (RoomSnapshot, error) {
	r, err := s.room(roomID)
	if err != nil {
		return RoomSnapshot{}, err
	}

	r.mu.Lock()
	if r.LeaderID != byUserID {
		r.mu.Unlock()
		return RoomSnapshot{}, errkind.New(errkind.Forbidden, "only the leader can accept join requests")
	}
	req, ok := r.JoinRequests[requesterID]
	if !ok {
		r.mu.Unlock()
		return RoomSnapshot{}, errkind.New(errkind.NotFound, "no join request from %s", requesterID)
	}
	delete(r.JoinRequests, requesterID)
	code := r.Code
	name := req.RequesterName
	r.mu.Unlock()

	return s.JoinRoom(code, requesterID, name, true)
}

// RejectJoin declines a request. The entry stays so the attempt counter keeps
// rate-limiting future requests.
func (s *Server) RejectJoin(roomID, byUserID, requesterID string) error {
	r, err := s.room(roomID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.LeaderID != byUserID {
		return errkind.New(errkind.Forbidden, "only the leader can reject join requests")
	}
	if _, ok := r.JoinRequests[requesterID]; !ok {
		return errkind.New(errkind.NotFound, "no join request from %s", requesterID)
	}
	s.log.Infof("join request from %s rejected for room %s", requesterID, r.ID)
	s.emitter.EmitToUser(requesterID, EventJoinRequest, map[string]interface{}{
		"roomId":   r.ID,
		"accepted": false,
	})
	return nil
}

// ListJoinRequests lists the pending requests of a room for the leader.
func (s *Server) ListJoinRequests(roomID, byUserID string) ([]JoinRequest, error) {
	r, err := s.room(roomID)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.LeaderID != byUserID {
		return nil, errkind.New(errkind.Forbidden, "only the leader can list join requests")
	}
	out := make([]JoinRequest, 0, len(r.JoinRequests))
	for _, req := range r.JoinRequests {
		out = append(out, *req)
	}
	return out, nil
}
