package store

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")
	s := NewPosts(path)

	first, err := s.Append(Post{Text: "hello", Username: "alice", SymptomGroup: "anxiety"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if first.ID != 1 {
		t.Errorf("first id = %d, want 1", first.ID)
	}
	if first.Timestamp == "" {
		t.Error("timestamp should default to now")
	}

	second, err := s.Append(Post{Text: "again", Username: "bob"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if second.ID != 2 {
		t.Errorf("second id = %d, want 2", second.ID)
	}

	table, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !table.HasColumn("id") {
		t.Error("append must establish the id column")
	}
	if len(table.Posts) != 2 {
		t.Errorf("got %d posts, want 2", len(table.Posts))
	}
}

func TestAppendNeverReassignsIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")
	s := NewPosts(path)

	if _, err := s.Append(Post{Text: "a", Username: "alice"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Append(Post{Text: "b", Username: "bob"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := s.Delete(1); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	// id 2 still exists, so the next id is 3, not a reused 1.
	p, err := s.Append(Post{Text: "c", Username: "carol"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if p.ID != 3 {
		t.Errorf("id = %d, want 3", p.ID)
	}
}

func TestUpdate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")
	s := NewPosts(path)
	if _, err := s.Append(Post{Text: "original", Username: "alice", SymptomGroup: "anxiety"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	t.Run("partial update", func(t *testing.T) {
		text := "edited"
		p, err := s.Update(1, UpdateFields{Text: &text})
		if err != nil {
			t.Fatalf("Update: %v", err)
		}
		if p.Text != "edited" || p.SymptomGroup != "anxiety" {
			t.Errorf("got %+v", p)
		}
	})

	t.Run("not found", func(t *testing.T) {
		if _, err := s.Update(99, UpdateFields{}); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate ids rejected", func(t *testing.T) {
		dup := filepath.Join(t.TempDir(), "dup.csv")
		writeFile(t, dup, "id,content,symptom_group,username,timestamp\n"+
			"7,a,g,alice,t\n7,b,g,bob,t\n")
		if _, err := NewPosts(dup).Update(7, UpdateFields{}); !errors.Is(err, ErrMultipleMatches) {
			t.Errorf("got %v, want ErrMultipleMatches", err)
		}
		if _, err := NewPosts(dup).Get(7); !errors.Is(err, ErrMultipleMatches) {
			t.Errorf("Get: got %v, want ErrMultipleMatches", err)
		}
	})
}

func TestDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")
	writeFile(t, path, "id,content,symptom_group,username,timestamp\n"+
		"1,a,g,alice,t\n2,b,g,bob,t\n2,c,g,bob,t\n")
	s := NewPosts(path)

	n, err := s.Delete(2)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d rows, want 2", n)
	}

	if _, err := s.Delete(2); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}

	table, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(table.Posts) != 1 || table.Posts[0].ID != 1 {
		t.Errorf("remaining posts: %+v", table.Posts)
	}
}

func TestGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")
	s := NewPosts(path)
	saved, err := s.Append(Post{Text: "hello", Username: "alice"})
	if err != nil {
		t.Fatalf("Append: %v", err)
	}

	got, err := s.Get(saved.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Text != "hello" {
		t.Errorf("got %+v", got)
	}

	if _, err := s.Get(42); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
