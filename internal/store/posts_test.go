package store

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}

func TestLoadPosts(t *testing.T) {
	dir := t.TempDir()

	t.Run("mutator shape", func(t *testing.T) {
		path := filepath.Join(dir, "main_posts.csv")
		writeFile(t, path, "id,content,symptom_group,username,timestamp\n"+
			"1,feeling low,anxiety,alice,2024-01-01 10:00:00\n"+
			"2,fine today,depression,bob,2024-01-02 11:00:00\n")

		table, err := LoadPosts(path)
		if err != nil {
			t.Fatalf("LoadPosts: %v", err)
		}
		if len(table.Posts) != 2 {
			t.Fatalf("got %d posts, want 2", len(table.Posts))
		}
		p := table.Posts[0]
		if p.ID != 1 || p.Text != "feeling low" || p.Username != "alice" || p.SymptomGroup != "anxiety" {
			t.Errorf("unexpected first post: %+v", p)
		}
		if !table.HasColumn("id") {
			t.Error("id column should be preserved")
		}
	})

	t.Run("scraped shape without id", func(t *testing.T) {
		path := filepath.Join(dir, "scraped.csv")
		writeFile(t, path, "username,text,timestamp,url,symptom_group,keyword\n"+
			"carol,cannot sleep,2024-02-01,https://x.test/1,insomnia,sleep\n")

		table, err := LoadPosts(path)
		if err != nil {
			t.Fatalf("LoadPosts: %v", err)
		}
		p := table.Posts[0]
		if p.ID != 0 {
			t.Errorf("scraped rows have no id, got %d", p.ID)
		}
		if p.Text != "cannot sleep" || p.URL != "https://x.test/1" || p.Keyword != "sleep" {
			t.Errorf("unexpected post: %+v", p)
		}
		if table.HasColumn("id") {
			t.Error("id column should be absent until first save")
		}
	})

	t.Run("header only", func(t *testing.T) {
		path := filepath.Join(dir, "empty.csv")
		writeFile(t, path, "id,content,symptom_group,username,timestamp\n")

		table, err := LoadPosts(path)
		if err != nil {
			t.Fatalf("LoadPosts: %v", err)
		}
		if len(table.Posts) != 0 {
			t.Errorf("got %d posts, want 0", len(table.Posts))
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadPosts(filepath.Join(dir, "absent.csv"))
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})

	t.Run("missing username column", func(t *testing.T) {
		path := filepath.Join(dir, "bad.csv")
		writeFile(t, path, "id,content\n1,hello\n")
		_, err := LoadPosts(path)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})

	t.Run("missing body column", func(t *testing.T) {
		path := filepath.Join(dir, "bad2.csv")
		writeFile(t, path, "id,username\n1,alice\n")
		_, err := LoadPosts(path)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})
}

func TestWritePostsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.csv")
	table := &Table{
		Columns: []string{"id", "content", "symptom_group", "username", "timestamp", "label"},
		Posts: []Post{
			{ID: 1, Text: "a, with comma", SymptomGroup: "anxiety", Username: "alice", Timestamp: "2024-01-01", Label: 1},
			{ID: 2, Text: "plain", SymptomGroup: "depression", Username: "bob", Timestamp: "2024-01-02"},
		},
	}
	if err := WritePosts(path, table); err != nil {
		t.Fatalf("WritePosts: %v", err)
	}

	got, err := LoadPosts(path)
	if err != nil {
		t.Fatalf("LoadPosts: %v", err)
	}
	if !reflect.DeepEqual(got.Columns, table.Columns) {
		t.Errorf("columns changed: %v", got.Columns)
	}
	if !reflect.DeepEqual(got.Posts, table.Posts) {
		t.Errorf("posts changed:\n got %+v\nwant %+v", got.Posts, table.Posts)
	}
}

func TestTableViews(t *testing.T) {
	table := &Table{Posts: []Post{
		{Username: "alice", SymptomGroup: "anxiety"},
		{Username: "bob", SymptomGroup: "depression"},
		{Username: "alice", SymptomGroup: "anxiety"},
		{Username: "carol", SymptomGroup: ""},
	}}

	if got := table.SymptomGroups(); !reflect.DeepEqual(got, []string{"anxiety", "depression"}) {
		t.Errorf("SymptomGroups = %v", got)
	}
	if got := table.Usernames(); !reflect.DeepEqual(got, []string{"alice", "bob", "carol"}) {
		t.Errorf("Usernames = %v", got)
	}

	t.Run("filter is exact", func(t *testing.T) {
		if got := table.FilterBySymptomGroup("anxiety"); len(got.Posts) != 2 {
			t.Errorf("got %d rows, want 2", len(got.Posts))
		}
		if got := table.FilterBySymptomGroup("Anxiety"); len(got.Posts) != 0 {
			t.Errorf("matching is case sensitive, got %d rows", len(got.Posts))
		}
	})
}
