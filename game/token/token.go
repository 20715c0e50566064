// Package token holds the key/value attachment carried by an issued quest
// token. The attachment is the token's only durable link to its progress
// instance; accessors here are the single place that knows the key names and
// value encodings.
package token

import (
	"strconv"
	"time"
)

// Attachment keys.
const (
	KeyQuestID    = "quest_id"
	KeyOwner      = "owner"
	KeyInstanceID = "instance_id"
	KeyCreated    = "created"
	KeyLocked     = "locked"
	KeyRedeemed   = "redeemed"
)

// Attachment is a string key/value container attached to a token.
type Attachment interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MapAttachment is a map-backed Attachment.
type MapAttachment map[string]string

func (m MapAttachment) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapAttachment) Set(key, value string) { m[key] = value }

func (m MapAttachment) Delete(key string) { delete(m, key) }

// Source is the view of a progress instance needed to stamp or refresh a token.
type Source interface {
	ID() string
	QuestID() string
	OwnerID() string
	Redeemed() bool
	CreatedAt() time.Time
}

// New builds the attachment for a freshly issued token.
func New(src Source, locked bool) MapAttachment {
	att := MapAttachment{}
	SetQuestID(att, src.QuestID())
	SetInstanceID(att, src.ID())
	SetCreated(att, src.CreatedAt())
	SetLocked(att, locked)
	Sync(att, src)
	return att
}

// Sync copies the mutable instance fields (owner, redeemed) onto att.
func Sync(att Attachment, src Source) {
	SetOwner(att, src.OwnerID())
	SetRedeemed(att, src.Redeemed())
}

func QuestID(att Attachment) string {
	v, _ := att.Get(KeyQuestID)
	return v
}

func SetQuestID(att Attachment, id string) { att.Set(KeyQuestID, id) }

// Owner returns the bound player id, or "" when the token is unbound.
func Owner(att Attachment) string {
	v, _ := att.Get(KeyOwner)
	return v
}

// SetOwner stores id; an empty id removes the key.
func SetOwner(att Attachment, id string) {
	if id == "" {
		att.Delete(KeyOwner)
		return
	}
	att.Set(KeyOwner, id)
}

func InstanceID(att Attachment) string {
	v, _ := att.Get(KeyInstanceID)
	return v
}

func SetInstanceID(att Attachment, id string) { att.Set(KeyInstanceID, id) }

// Created returns the creation time stored as unix milliseconds. A missing or
// malformed value yields the zero time.
func Created(att Attachment) time.Time {
	v, ok := att.Get(KeyCreated)
	if !ok {
		return time.Time{}
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func SetCreated(att Attachment, t time.Time) {
	att.Set(KeyCreated, strconv.FormatInt(t.UnixMilli(), 10))
}

func Locked(att Attachment) bool { return flag(att, KeyLocked) }

func SetLocked(att Attachment, v bool) { setFlag(att, KeyLocked, v) }

func Redeemed(att Attachment) bool { return flag(att, KeyRedeemed) }

func SetRedeemed(att Attachment, v bool) { setFlag(att, KeyRedeemed, v) }

// flags are stored as "1"; absence means false.
func flag(att Attachment, key string) bool {
	v, ok := att.Get(key)
	return ok && v == "1"
}

func setFlag(att Attachment, key string, v bool) {
	if v {
		att.Set(key, "1")
		return
	}
	att.Delete(key)
}
