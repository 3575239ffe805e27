// Searchd - Real-time search service for the Sonet social platform
// Copyright 2026 Sonet contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/sonet-social/searchd

package models

import (
	"testing"
	"time"
)

func validNote() *NoteDocument {
	return &NoteDocument{
		ID:         "n1",
		UserID:     "u1",
		Username:   "alice",
		Content:    "morning coffee",
		Visibility: VisibilityPublic,
		CreatedAt:  time.Now().Add(-time.Hour),
	}
}

func TestNoteShouldBeIndexed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*NoteDocument)
		want   bool
	}{
		{"public note", func(n *NoteDocument) {}, true},
		{"unlisted note", func(n *NoteDocument) { n.Visibility = VisibilityUnlisted }, true},
		{"private note", func(n *NoteDocument) { n.Visibility = VisibilityPrivate }, false},
		{"followers-only note", func(n *NoteDocument) { n.Visibility = VisibilityFollowers }, false},
		{"empty content", func(n *NoteDocument) { n.Content = "   " }, false},
		{"missing id", func(n *NoteDocument) { n.ID = "" }, false},
		{"suspended author", func(n *NoteDocument) { n.AuthorSuspended = true }, false},
		{"low quality", func(n *NoteDocument) { n.QualityScore = 0.05 }, false},
		{"unanalyzed quality", func(n *NoteDocument) { n.QualityScore = 0 }, true},
		{"acceptable quality", func(n *NoteDocument) { n.QualityScore = 0.5 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := validNote()
			tt.mutate(n)
			if got := n.ShouldBeIndexed(); got != tt.want {
				t.Errorf("ShouldBeIndexed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func validUser() *UserDocument {
	return &UserDocument{
		ID:         "u1",
		Username:   "alice",
		Status:     UserActive,
		Searchable: true,
		Indexable:  true,
		CreatedAt:  time.Now().Add(-24 * time.Hour),
	}
}

func TestUserShouldBeIndexed(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*UserDocument)
		want   bool
	}{
		{"active user", func(u *UserDocument) {}, true},
		{"bot account", func(u *UserDocument) { u.Status = UserBot }, true},
		{"suspended", func(u *UserDocument) { u.Status = UserSuspended }, false},
		{"deleted", func(u *UserDocument) { u.Status = UserDeleted }, false},
		{"not indexable", func(u *UserDocument) { u.Indexable = false }, false},
		{"not searchable", func(u *UserDocument) { u.Searchable = false }, false},
		{"private", func(u *UserDocument) { u.IsPrivate = true }, false},
		{"missing username", func(u *UserDocument) { u.Username = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := validUser()
			tt.mutate(u)
			if got := u.ShouldBeIndexed(); got != tt.want {
				t.Errorf("ShouldBeIndexed() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoteAgeAt(t *testing.T) {
	n := validNote()
	now := n.CreatedAt.Add(2 * time.Hour)
	if got := n.AgeAt(now); got != 2*time.Hour {
		t.Errorf("AgeAt = %v, want 2h", got)
	}
	// Clock skew: created in the future clamps to zero.
	if got := n.AgeAt(n.CreatedAt.Add(-time.Minute)); got != 0 {
		t.Errorf("AgeAt with future created_at = %v, want 0", got)
	}
}

func TestVerificationRecord(t *testing.T) {
	var v VerificationRecord
	if v.Verified() {
		t.Error("zero record should not be verified")
	}
	v.Type = VerificationOfficial
	if !v.Verified() {
		t.Error("official record should be verified")
	}
}
