package refspec

import (
	"reflect"
	"testing"
)

func TestInjectFetch_Appends(t *testing.T) {
	got := InjectFetch([]string{"fetch", "origin"})
	want := []string{"fetch", "origin", "+refs/notes/ai:refs/notes/ai"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InjectFetch() = %v, want %v", got, want)
	}
}

func TestInjectPush_Appends(t *testing.T) {
	got := InjectPush([]string{"push", "origin", "main"})
	want := []string{"push", "origin", "main", "refs/notes/ai:refs/notes/ai"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InjectPush() = %v, want %v", got, want)
	}
}

func TestInjectFetch_Idempotent(t *testing.T) {
	argv := []string{"fetch", "origin", "+refs/notes/ai:refs/notes/ai"}
	got := InjectFetch(argv)
	if !reflect.DeepEqual(got, argv) {
		t.Errorf("InjectFetch() = %v, want unchanged %v", got, argv)
	}
}

func TestInjectPush_Idempotent(t *testing.T) {
	argv := []string{"push", "origin", "refs/notes/ai:refs/notes/ai"}
	got := InjectPush(argv)
	if !reflect.DeepEqual(got, argv) {
		t.Errorf("InjectPush() = %v, want unchanged %v", got, argv)
	}
}

func TestInjectFetch_NoAINotesFlagStripsAndSkips(t *testing.T) {
	got := InjectFetch([]string{"fetch", "origin", "--no-ai-notes"})
	want := []string{"fetch", "origin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InjectFetch() = %v, want %v", got, want)
	}
}

func TestInjectPush_NoAINotesFlagStripsAndSkips(t *testing.T) {
	got := InjectPush([]string{"push", "--no-ai-notes", "origin", "main"})
	want := []string{"push", "origin", "main"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("InjectPush() = %v, want %v", got, want)
	}
}
