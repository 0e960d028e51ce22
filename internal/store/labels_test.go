package store

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadLabels(t *testing.T) {
	dir := t.TempDir()

	t.Run("basic", func(t *testing.T) {
		path := filepath.Join(dir, "label.csv")
		writeFile(t, path, "index_get,final_label\n1,0\n2,1\n5,1\n")

		rows, err := LoadLabels(path)
		if err != nil {
			t.Fatalf("LoadLabels: %v", err)
		}
		want := []LabelRow{{1, 0}, {2, 1}, {5, 1}}
		if !reflect.DeepEqual(rows, want) {
			t.Errorf("got %v, want %v", rows, want)
		}
	})

	t.Run("non-numeric index skipped", func(t *testing.T) {
		path := filepath.Join(dir, "label2.csv")
		writeFile(t, path, "index_get,final_label\nabc,1\n3,1\n")

		rows, err := LoadLabels(path)
		if err != nil {
			t.Fatalf("LoadLabels: %v", err)
		}
		if len(rows) != 1 || rows[0].IndexGet != 3 {
			t.Errorf("got %v, want only row 3", rows)
		}
	})

	t.Run("missing column", func(t *testing.T) {
		path := filepath.Join(dir, "label3.csv")
		writeFile(t, path, "index_get\n1\n")
		if _, err := LoadLabels(path); !errors.Is(err, ErrMalformed) {
			t.Errorf("got %v, want ErrMalformed", err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadLabels(filepath.Join(dir, "absent.csv")); !errors.Is(err, ErrNotFound) {
			t.Errorf("got %v, want ErrNotFound", err)
		}
	})
}
