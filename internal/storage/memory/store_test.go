package memory

import "testing"

func TestStoreBasics(t *testing.T) {
	st := New()

	if got := st.Exists("k"); got != 0 {
		t.Fatalf("Exists on empty store = %d, want 0", got)
	}
	if _, ok := st.Get("k"); ok {
		t.Fatal("Get on empty store reported presence")
	}

	st.Set("k", "v1")
	st.Set("k", "v2")

	v, ok := st.Get("k")
	if !ok || v != "v2" {
		t.Fatalf("Get = (%q, %v), want (v2, true)", v, ok)
	}
	if got := st.Exists("k"); got != 1 {
		t.Fatalf("Exists = %d, want 1", got)
	}
	if got := st.Len(); got != 1 {
		t.Fatalf("Len = %d, want 1", got)
	}

	if got := st.Del("k"); got != 1 {
		t.Fatalf("Del = %d, want 1", got)
	}
	if got := st.Del("k"); got != 0 {
		t.Fatalf("second Del = %d, want 0", got)
	}
	if got := st.Exists("k"); got != 0 {
		t.Fatalf("Exists after Del = %d, want 0", got)
	}
}

func TestStoreAllIsACopy(t *testing.T) {
	st := New()
	st.Set("a", "1")
	st.Set("b", "2")

	snap := st.All()
	st.Set("c", "3")
	st.Del("a")

	if len(snap) != 2 || snap["a"] != "1" || snap["b"] != "2" {
		t.Fatalf("copy changed under mutation: %v", snap)
	}
}

func TestStoreReplace(t *testing.T) {
	st := New()
	st.Set("old", "x")

	st.Replace(map[string]string{"a": "1", "b": "2"})

	if st.Exists("old") != 0 {
		t.Fatal("Replace kept a stale key")
	}
	if v, _ := st.Get("a"); v != "1" {
		t.Fatalf("a = %q, want 1", v)
	}
	if st.Len() != 2 {
		t.Fatalf("Len = %d, want 2", st.Len())
	}
}

func TestStoreRange(t *testing.T) {
	st := New()
	st.Set("a", "1")
	st.Set("b", "2")
	st.Set("c", "3")

	seen := map[string]string{}
	st.Range(func(k, v string) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 3 {
		t.Fatalf("Range visited %d entries, want 3", len(seen))
	}

	count := 0
	st.Range(func(k, v string) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("Range ignored early stop, visited %d", count)
	}
}
