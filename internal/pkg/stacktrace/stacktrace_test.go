package stacktrace

import (
	"reflect"
	"testing"
)

func TestInternalPaths(t *testing.T) {
	t.Parallel()

	stack := []byte(`goroutine 7 [running]:
runtime/debug.Stack()
	/usr/local/go/src/runtime/debug/stack.go:26 +0x5e
github.com/shandysiswandi/gostepup/internal/pkg/goroutine.(*Manager).Go.func1.1()
	/src/internal/pkg/goroutine/goroutine.go:71 +0x85
github.com/shandysiswandi/gostepup/internal/identity/usecase.(*Usecase).Login()
	/src/internal/identity/usecase/login.go:40
`)

	got := InternalPaths(stack)
	want := []string{
		"internal/pkg/goroutine/goroutine.go:71",
		"internal/identity/usecase/login.go:40",
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("InternalPaths() = %v, want %v", got, want)
	}
}
