package heap

import (
	"errors"
	"sync"
	"testing"
)

type dropCounter struct {
	drops *int
}

func (d dropCounter) Drop() { *d.drops++ }

func TestTable_Basic(t *testing.T) {
	table := NewTable[string]()

	h, err := table.Insert("test")
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok || val != "test" {
		t.Fatalf("Get = %q, %v", val, ok)
	}

	if !table.Replace(h, "changed") {
		t.Fatal("Replace failed")
	}
	val, _ = table.Get(h)
	if val != "changed" {
		t.Fatalf("Expected 'changed', got %q", val)
	}

	val, ok = table.Remove(h)
	if !ok || val != "changed" {
		t.Fatalf("Remove = %q, %v", val, ok)
	}

	if _, ok := table.Get(h); ok {
		t.Fatal("Expected Get to fail after Remove")
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d, want 0", table.Len())
	}
}

func TestTable_InvalidHandles(t *testing.T) {
	table := NewTable[int]()

	if _, ok := table.Get(0); ok {
		t.Error("handle 0 must be invalid")
	}
	if _, ok := table.Get(99); ok {
		t.Error("out of range handle must be invalid")
	}
	if _, ok := table.Remove(0); ok {
		t.Error("Remove(0) must fail")
	}
	if table.Replace(7, 1) {
		t.Error("Replace on unknown handle must fail")
	}
}

func TestTable_FreeListReuse(t *testing.T) {
	table := NewTable[int]()

	h1, _ := table.Insert(1)
	h2, _ := table.Insert(2)
	table.Remove(h1)

	h3, _ := table.Insert(3)
	if h3 != h1 {
		t.Errorf("expected freed handle %d to be reused, got %d", h1, h3)
	}
	if v, _ := table.Get(h2); v != 2 {
		t.Errorf("unrelated slot changed: %d", v)
	}
	if table.Len() != 2 {
		t.Errorf("Len = %d, want 2", table.Len())
	}
}

func TestTable_Each(t *testing.T) {
	table := NewTable[int]()
	for i := 1; i <= 5; i++ {
		table.Insert(i)
	}

	sum := 0
	table.Each(func(_ Handle, v int) bool {
		sum += v
		return true
	})
	if sum != 15 {
		t.Errorf("sum = %d, want 15", sum)
	}

	visited := 0
	table.Each(func(Handle, int) bool {
		visited++
		return visited < 2
	})
	if visited != 2 {
		t.Errorf("Each should stop early, visited %d", visited)
	}
}

func TestTable_Close(t *testing.T) {
	drops := 0
	table := NewTable[dropCounter]()
	table.Insert(dropCounter{&drops})
	table.Insert(dropCounter{&drops})

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if drops != 2 {
		t.Errorf("drops = %d, want 2", drops)
	}

	if _, err := table.Insert(dropCounter{&drops}); !errors.Is(err, ErrClosed) {
		t.Errorf("Insert after Close: got %v, want ErrClosed", err)
	}
	if err := table.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestTable_Concurrent(t *testing.T) {
	table := NewTable[int]()
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				h, err := table.Insert(n)
				if err != nil {
					t.Errorf("Insert: %v", err)
					return
				}
				table.Remove(h)
			}
		}(i)
	}
	wg.Wait()

	if table.Len() != 0 {
		t.Errorf("Len = %d, want 0", table.Len())
	}
}
