package app

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/dkeye/Presence/internal/core"
	"github.com/dkeye/Presence/internal/domain"
	"github.com/dkeye/Presence/internal/metrics"
)

const DefaultReservationTTL = 30 * time.Second

type roomSlot struct {
	capacity int
	size     int
	players  map[domain.UserID]struct{}
}

func (s *roomSlot) view(id domain.RoomID) domain.Room {
	return domain.Room{ID: id, Capacity: s.capacity, CurrentSize: s.size}
}

type reservation struct {
	roomID    domain.RoomID
	expiresAt time.Time
	timer     *quartz.Timer
}

// RoomManager owns the room table, the connection->room mapping and the
// reservation leases. Reservations and joined connections share one size
// counter per room.
type RoomManager struct {
	mu           sync.Mutex
	clock        quartz.Clock
	capacity     int
	ttl          time.Duration
	intn         func(n int) int
	order        []domain.RoomID
	rooms        map[domain.RoomID]*roomSlot
	conns        map[core.SessionID]domain.RoomID
	reservations map[domain.UserID]*reservation
}

type RoomOption func(*RoomManager)

func WithClock(clock quartz.Clock) RoomOption {
	return func(m *RoomManager) { m.clock = clock }
}

func WithReservationTTL(ttl time.Duration) RoomOption {
	return func(m *RoomManager) { m.ttl = ttl }
}

// WithRand replaces the source of the random scan offset.
func WithRand(intn func(n int) int) RoomOption {
	return func(m *RoomManager) { m.intn = intn }
}

func NewRoomManager(poolSize, capacity int, opts ...RoomOption) *RoomManager {
	m := &RoomManager{
		clock:        quartz.NewReal(),
		capacity:     capacity,
		ttl:          DefaultReservationTTL,
		intn:         rand.IntN,
		rooms:        make(map[domain.RoomID]*roomSlot),
		conns:        make(map[core.SessionID]domain.RoomID),
		reservations: make(map[domain.UserID]*reservation),
	}
	for _, opt := range opts {
		opt(m)
	}
	for range poolSize {
		m.addRoomLocked()
	}
	return m
}

func (m *RoomManager) addRoomLocked() domain.RoomID {
	id := domain.RoomID(fmt.Sprintf("room-%d", len(m.order)+1))
	m.rooms[id] = &roomSlot{capacity: m.capacity, players: make(map[domain.UserID]struct{})}
	m.order = append(m.order, id)
	metrics.RoomOccupancy.WithLabelValues(string(id)).Set(0)
	return id
}

// AddRoom grows the pool by one room and returns its id.
func (m *RoomManager) AddRoom() domain.RoomID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.addRoomLocked()
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Int("pool", len(m.order)).Msg("room added")
	return id
}

func (m *RoomManager) setSizeLocked(id domain.RoomID, slot *roomSlot, size int) {
	if size < 0 {
		size = 0
	}
	slot.size = size
	metrics.RoomOccupancy.WithLabelValues(string(id)).Set(float64(size))
}

// Reserve claims one unit of capacity in roomID for userID. Any earlier
// reservation of the same user is released first.
func (m *RoomManager) Reserve(userID domain.UserID, roomID domain.RoomID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.rooms[roomID]
	if !ok {
		return domain.ErrRoomNotFound
	}
	m.releaseReservationLocked(userID)
	if !slot.view(roomID).HasSpace() {
		return domain.ErrRoomFull
	}
	m.setSizeLocked(roomID, slot, slot.size+1)

	res := &reservation{roomID: roomID, expiresAt: m.clock.Now().Add(m.ttl)}
	res.timer = m.clock.AfterFunc(m.ttl, func() { m.expire(userID, res) }, "rooms", "reservation")
	m.reservations[userID] = res
	log.Info().Str("module", "app.rooms").Str("user", string(userID)).Str("room", string(roomID)).Msg("reserved")
	return nil
}

func (m *RoomManager) expire(userID domain.UserID, res *reservation) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reservations[userID] != res {
		return
	}
	delete(m.reservations, userID)
	if slot, ok := m.rooms[res.roomID]; ok {
		m.setSizeLocked(res.roomID, slot, slot.size-1)
	}
	log.Info().Str("module", "app.rooms").Str("user", string(userID)).Str("room", string(res.roomID)).Msg("reservation expired")
}

func (m *RoomManager) releaseReservationLocked(userID domain.UserID) {
	res, ok := m.reservations[userID]
	if !ok {
		return
	}
	res.timer.Stop()
	delete(m.reservations, userID)
	if slot, ok := m.rooms[res.roomID]; ok {
		m.setSizeLocked(res.roomID, slot, slot.size-1)
	}
}

// consumeReservationLocked turns a live reservation into occupancy; the
// capacity unit is kept.
func (m *RoomManager) consumeReservationLocked(userID domain.UserID) (domain.RoomID, bool) {
	if userID == "" {
		return "", false
	}
	res, ok := m.reservations[userID]
	if !ok {
		return "", false
	}
	res.timer.Stop()
	delete(m.reservations, userID)
	return res.roomID, true
}

// RandomJoin assigns sid to a room. Repeated calls for the same sid return
// the same room.
func (m *RoomManager) RandomJoin(sid core.SessionID, userID domain.UserID) (domain.RoomID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.conns[sid]; ok {
		return id, nil
	}
	if id, ok := m.consumeReservationLocked(userID); ok {
		m.conns[sid] = id
		log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", string(id)).Msg("reservation consumed")
		return id, nil
	}
	n := len(m.order)
	if n == 0 {
		return "", domain.ErrRoomFull
	}
	start := m.intn(n)
	for i := range n {
		id := m.order[(start+i)%n]
		slot := m.rooms[id]
		if slot.view(id).HasSpace() {
			m.setSizeLocked(id, slot, slot.size+1)
			m.conns[sid] = id
			log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", string(id)).Msg("joined")
			return id, nil
		}
	}
	return "", domain.ErrRoomFull
}

// JoinRoom assigns sid to an explicit room. A reservation for another room
// is released, a reservation for this room is consumed.
func (m *RoomManager) JoinRoom(sid core.SessionID, roomID domain.RoomID, userID domain.UserID) (domain.RoomID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.conns[sid]; ok {
		return id, nil
	}
	slot, ok := m.rooms[roomID]
	if !ok {
		return "", domain.ErrRoomNotFound
	}
	if res, ok := m.reservations[userID]; ok && userID != "" {
		if res.roomID == roomID {
			m.consumeReservationLocked(userID)
			m.conns[sid] = roomID
			log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", string(roomID)).Msg("reservation consumed")
			return roomID, nil
		}
		m.releaseReservationLocked(userID)
	}
	if !slot.view(roomID).HasSpace() {
		return "", domain.ErrRoomFull
	}
	m.setSizeLocked(roomID, slot, slot.size+1)
	m.conns[sid] = roomID
	log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", string(roomID)).Msg("joined")
	return roomID, nil
}

// Exit releases the occupancy held by sid.
func (m *RoomManager) Exit(sid core.SessionID) (domain.RoomID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.conns[sid]
	if !ok {
		return "", false
	}
	delete(m.conns, sid)
	if slot, ok := m.rooms[id]; ok {
		m.setSizeLocked(id, slot, slot.size-1)
	}
	log.Info().Str("module", "app.rooms").Str("sid", string(sid)).Str("room", string(id)).Msg("exited")
	return id, true
}

// ReservationOf reports the room and expiry of a user's live reservation.
func (m *RoomManager) ReservationOf(userID domain.UserID) (domain.RoomID, time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	res, ok := m.reservations[userID]
	if !ok {
		return "", time.Time{}, false
	}
	return res.roomID, res.expiresAt, true
}

func (m *RoomManager) Room(id domain.RoomID) (domain.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.rooms[id]
	if !ok {
		return domain.Room{}, false
	}
	return slot.view(id), true
}

// List returns the rooms in creation order.
func (m *RoomManager) List() []domain.Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lo.Map(m.order, func(id domain.RoomID, _ int) domain.Room {
		return m.rooms[id].view(id)
	})
}

// AddPlayer marks userID as present in roomID for status aggregation.
// It does not touch the capacity counter.
func (m *RoomManager) AddPlayer(roomID domain.RoomID, userID domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot, ok := m.rooms[roomID]; ok {
		slot.players[userID] = struct{}{}
	}
}

func (m *RoomManager) RemovePlayer(roomID domain.RoomID, userID domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot, ok := m.rooms[roomID]; ok {
		delete(slot.players, userID)
	}
}

func (m *RoomManager) PlayerIDs(roomID domain.RoomID) []domain.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	slot, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	ids := lo.Keys(slot.players)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Close stops every pending reservation timer.
func (m *RoomManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, res := range m.reservations {
		res.timer.Stop()
	}
}
