package pipeline

import (
	"sync"
	"testing"
)

func TestContext_AcquireRelease(t *testing.T) {
	ctx := AcquireContext()
	if ctx == nil {
		t.Fatal("AcquireContext returned nil")
	}

	ctx.ResourceType = "Patient"
	ctx.ResourceID = "p1"
	ctx.SetMetadata("key", "value")
	ctx.Release()

	ctx2 := AcquireContext()
	defer ctx2.Release()

	if ctx2.ResourceType != "" {
		t.Errorf("ResourceType = %q after reuse; want empty", ctx2.ResourceType)
	}
	if ctx2.ResourceID != "" {
		t.Errorf("ResourceID = %q after reuse; want empty", ctx2.ResourceID)
	}
	if _, ok := ctx2.GetMetadata("key"); ok {
		t.Error("Metadata survived reuse")
	}
}

func TestContext_Metadata(t *testing.T) {
	ctx := AcquireContext()
	defer ctx.Release()

	ctx.SetMetadata("count", 42)

	v, ok := ctx.GetMetadata("count")
	if !ok {
		t.Fatal("GetMetadata returned false for set key")
	}
	if v.(int) != 42 {
		t.Errorf("GetMetadata = %v; want 42", v)
	}

	if _, ok := ctx.GetMetadata("missing"); ok {
		t.Error("GetMetadata returned true for missing key")
	}
}

func TestContext_MetadataConcurrent(t *testing.T) {
	ctx := AcquireContext()
	defer ctx.Release()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(n int) {
			defer wg.Done()
			ctx.SetMetadata("shared", n)
		}(i)
		go func() {
			defer wg.Done()
			ctx.GetMetadata("shared")
		}()
	}
	wg.Wait()
}

func TestContext_Field(t *testing.T) {
	ctx := AcquireContext()
	defer ctx.Release()

	if v := ctx.Field("anything"); v != nil {
		t.Errorf("Field on nil map = %v; want nil", v)
	}

	ctx.ResourceMap = map[string]any{"gender": "female"}

	if v := ctx.Field("gender"); v != "female" {
		t.Errorf("Field(gender) = %v; want female", v)
	}
	if v := ctx.Field("absent"); v != nil {
		t.Errorf("Field(absent) = %v; want nil", v)
	}
}
