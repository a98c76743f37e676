package storage

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/mosaicnetworks/reload/src/dispatcher"
	"github.com/mosaicnetworks/reload/src/id"
	"github.com/mosaicnetworks/reload/src/message"
	"github.com/sirupsen/logrus"
)

// appendIndex in a StoreReq array value appends after the last index.
const appendIndex = 0xFFFFFFFF

// errGenerationTooLow is returned when a store carries an older generation
// than the one stored.
var errGenerationTooLow = errors.New("generation counter too low")

// Sender sends responses through the dispatcher.
type Sender interface {
	Send(msg *message.Message, sink dispatcher.Sink) error
}

// Registrar registers message sinks.
type Registrar interface {
	Register(t message.Type, sink dispatcher.Sink) error
}

// Replicator names the nodes holding replicas of this node's resources.
type Replicator interface {
	ReplicationSet() []id.NodeID
}

// Storage answers StoreReq, FetchReq, RemoveReq and FindReq from a Backend.
// Values carry their storage time in milliseconds and their lifetime in
// seconds; a zero lifetime never expires.
type Storage struct {
	logger *logrus.Entry

	backend    Backend
	sender     Sender
	replicator Replicator
	clock      clock.Clock
}

// NewStorage ...
func NewStorage(backend Backend, sender Sender, replicator Replicator, clk clock.Clock, logger *logrus.Entry) *Storage {
	if logger == nil {
		log := logrus.New()
		log.Level = logrus.DebugLevel
		logger = logrus.NewEntry(log)
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Storage{
		logger:     logger,
		backend:    backend,
		sender:     sender,
		replicator: replicator,
		clock:      clk,
	}
}

// Register subscribes the storage to the requests it answers.
func (s *Storage) Register(r Registrar) error {
	for _, t := range []message.Type{
		message.StoreReq,
		message.FetchReq,
		message.RemoveReq,
		message.FindReq,
	} {
		if err := r.Register(t, s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Storage) nowMillis() uint64 {
	return uint64(s.clock.Now().UnixNano() / 1e6)
}

// Consume implements dispatcher.Sink.
func (s *Storage) Consume(msg *message.Message) {
	body, err := msg.Body()
	if err != nil {
		s.respondError(msg, message.ErrInvalidMessage, err.Error())
		return
	}

	var ans message.Body
	switch b := body.(type) {
	case *message.StoreReqBody:
		ans, err = s.Store(b)
	case *message.FetchReqBody:
		ans, err = s.Fetch(b)
	case *message.RemoveReqBody:
		ans, err = s.Remove(b)
	case *message.FindReqBody:
		ans, err = s.Find(b)
	default:
		s.logger.WithField("type", msg.Type()).Debug("Storage ignoring message")
		return
	}

	switch {
	case errors.Is(err, errGenerationTooLow):
		s.respondError(msg, message.ErrGenerationCounterTooLow, err.Error())
	case err != nil:
		s.logger.WithError(err).WithField("type", msg.Type()).Error("Storage request failed")
		s.respondError(msg, message.ErrInvalidMessage, err.Error())
	default:
		s.respond(msg, ans)
	}
}

func (s *Storage) load(resource id.ResourceID, kind uint32) (*KindEntry, error) {
	data, err := s.backend.Get(entryKey(kind, resource))
	if err != nil {
		return nil, err
	}
	e := &KindEntry{}
	if err := e.Unmarshal(data); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Storage) save(e *KindEntry) error {
	data, err := e.Marshal()
	if err != nil {
		return err
	}
	return s.backend.Set(entryKey(e.Kind, e.Resource), data)
}

func (s *Storage) replicas() []id.NodeID {
	if s.replicator == nil {
		return nil
	}
	return s.replicator.ReplicationSet()
}

// Store applies a StoreReq. Nothing is written if any kind fails its
// generation or model check.
func (s *Storage) Store(req *message.StoreReqBody) (*message.StoreAnsBody, error) {
	entries := make([]*KindEntry, len(req.KindData))

	for i, kd := range req.KindData {
		e, err := s.load(req.Resource, kd.Kind)
		switch {
		case errors.Is(err, ErrKeyNotFound):
			e = &KindEntry{
				Resource: req.Resource,
				Kind:     kd.Kind,
				Model:    kd.Model,
			}
		case err != nil:
			return nil, err
		}

		if e.Model != kd.Model {
			return nil, fmt.Errorf("kind %d holds model %d, not %d", kd.Kind, e.Model, kd.Model)
		}
		if kd.Generation != 0 && kd.Generation < e.Generation {
			return nil, fmt.Errorf("kind %d at generation %d, got %d: %w", kd.Kind, e.Generation, kd.Generation, errGenerationTooLow)
		}
		entries[i] = e
	}

	ans := &message.StoreAnsBody{}
	for i, kd := range req.KindData {
		e := entries[i]
		for _, v := range kd.Values {
			e.Values = merge(e.Model, e.Values, v)
		}
		e.Generation++

		if err := s.save(e); err != nil {
			return nil, err
		}

		s.logger.WithFields(logrus.Fields{
			"resource":   req.Resource.String(),
			"kind":       kd.Kind,
			"generation": e.Generation,
			"values":     len(e.Values),
		}).Debug("Stored")

		ans.KindResponses = append(ans.KindResponses, message.StoreKindResponse{
			Kind:       kd.Kind,
			Generation: e.Generation,
			Replicas:   s.replicas(),
		})
	}
	return ans, nil
}

// merge puts v into values according to the data model.
func merge(model message.DataModel, values []message.StoredData, v message.StoredData) []message.StoredData {
	if model == message.Array && v.Value.Index == appendIndex {
		var next uint32
		for _, old := range values {
			if old.Value.Index >= next {
				next = old.Value.Index + 1
			}
		}
		v.Value.Index = next
	}

	for i, old := range values {
		if sameSlot(model, old.Value, v.Value) {
			values[i] = v
			return values
		}
	}
	return append(values, v)
}

// Fetch answers a FetchReq. A specifier whose generation matches the stored
// one gets no values back.
func (s *Storage) Fetch(req *message.FetchReqBody) (*message.FetchAnsBody, error) {
	now := s.nowMillis()
	ans := &message.FetchAnsBody{}

	for _, spec := range req.Specifiers {
		e, err := s.load(req.Resource, spec.Kind)
		if errors.Is(err, ErrKeyNotFound) {
			ans.KindResponses = append(ans.KindResponses, message.FetchKindResponse{Kind: spec.Kind})
			continue
		}
		if err != nil {
			return nil, err
		}

		resp := message.FetchKindResponse{
			Kind:       spec.Kind,
			Generation: e.Generation,
		}
		if spec.Generation == 0 || spec.Generation != e.Generation {
			for _, v := range e.Values {
				if !expired(v, now) && v.Value.Value.Exists && matches(e.Model, spec, v.Value) {
					resp.Values = append(resp.Values, v)
				}
			}
		}
		ans.KindResponses = append(ans.KindResponses, resp)
	}
	return ans, nil
}

// matches reports whether the specifier selects v. A specifier with no
// indices or keys selects everything.
func matches(model message.DataModel, spec message.StoredDataSpecifier, v message.StoredDataValue) bool {
	switch model {
	case message.Array:
		if len(spec.Indices) == 0 {
			return true
		}
		for _, r := range spec.Indices {
			if v.Index >= r.First && v.Index <= r.Last {
				return true
			}
		}
		return false
	case message.Dictionary:
		if len(spec.Keys) == 0 {
			return true
		}
		for _, k := range spec.Keys {
			if bytes.Equal(k, v.Key) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// Remove deletes the values selected by each specifier and bumps the
// generation of the kinds it touched.
func (s *Storage) Remove(req *message.RemoveReqBody) (*message.RemoveAnsBody, error) {
	ans := &message.RemoveAnsBody{}

	for _, spec := range req.Specifiers {
		e, err := s.load(req.Resource, spec.Kind)
		if errors.Is(err, ErrKeyNotFound) {
			ans.KindResponses = append(ans.KindResponses, message.StoreKindResponse{Kind: spec.Kind})
			continue
		}
		if err != nil {
			return nil, err
		}
		if spec.Generation != 0 && spec.Generation < e.Generation {
			return nil, fmt.Errorf("kind %d at generation %d, got %d: %w", spec.Kind, e.Generation, spec.Generation, errGenerationTooLow)
		}

		kept := e.Values[:0]
		for _, v := range e.Values {
			if !matches(e.Model, spec, v.Value) {
				kept = append(kept, v)
			}
		}
		e.Values = kept
		e.Generation++

		if err := s.save(e); err != nil {
			return nil, err
		}
		ans.KindResponses = append(ans.KindResponses, message.StoreKindResponse{
			Kind:       spec.Kind,
			Generation: e.Generation,
			Replicas:   s.replicas(),
		})
	}
	return ans, nil
}

// Find returns, for each kind, the stored resource closest to the requested
// one going clockwise around the ring.
func (s *Storage) Find(req *message.FindReqBody) (*message.FindAnsBody, error) {
	target := req.Resource.NodeID()
	ans := &message.FindAnsBody{}

	for _, kind := range req.Kinds {
		var closest id.ResourceID
		var closestDist id.NodeID

		err := s.backend.Iterate(kindKeyPrefix(kind), func(key, value []byte) error {
			r := resourceFromKey(key)
			d := r.NodeID().Sub(target)
			if closest == nil || d.Less(closestDist) {
				closest = r
				closestDist = d
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		ans.Results = append(ans.Results, message.FindKindData{
			Kind:    kind,
			Closest: closest,
		})
	}
	return ans, nil
}

// ResourceCount returns the number of stored (resource, kind) entries.
func (s *Storage) ResourceCount() int {
	count := 0
	err := s.backend.Iterate(allKeysPrefix(), func(key, value []byte) error {
		count++
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Counting resources")
	}
	return count
}

// Prune drops expired values and reports how many were removed.
func (s *Storage) Prune() int {
	now := s.nowMillis()
	var changed []*KindEntry
	removed := 0

	err := s.backend.Iterate(allKeysPrefix(), func(key, value []byte) error {
		e := &KindEntry{}
		if err := e.Unmarshal(value); err != nil {
			return err
		}
		kept := e.Values[:0]
		for _, v := range e.Values {
			if !expired(v, now) {
				kept = append(kept, v)
			}
		}
		if len(kept) != len(e.Values) {
			removed += len(e.Values) - len(kept)
			e.Values = kept
			changed = append(changed, e)
		}
		return nil
	})
	if err != nil {
		s.logger.WithError(err).Error("Pruning")
		return 0
	}

	for _, e := range changed {
		if err := s.save(e); err != nil {
			s.logger.WithError(err).Error("Saving pruned entry")
		}
	}
	if removed > 0 {
		s.logger.WithField("removed", removed).Debug("Pruned expired values")
	}
	return removed
}

// Close closes the backend.
func (s *Storage) Close() error {
	return s.backend.Close()
}

func (s *Storage) respond(req *message.Message, body message.Body) {
	resp, err := req.MakeResponse(body)
	if err != nil {
		s.logger.WithError(err).Error("Building response")
		return
	}
	if err := s.sender.Send(resp, nil); err != nil {
		s.logger.WithError(err).Debug("Sending response")
	}
}

func (s *Storage) respondError(req *message.Message, code message.ErrorCode, reason string) {
	resp, err := req.MakeErrorResponse(code, reason)
	if err != nil {
		s.logger.WithError(err).Error("Building error response")
		return
	}
	if err := s.sender.Send(resp, nil); err != nil {
		s.logger.WithError(err).Debug("Sending error response")
	}
}
