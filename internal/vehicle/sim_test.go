package vehicle

import (
	"context"
	"testing"
)

func TestSim(t *testing.T) {
	ctx := context.Background()
	s := NewSim(1, 2, 30)

	st, err := s.GetState(ctx)
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if st.X != 1 || st.Y != 2 || st.Z != 30 {
		t.Fatalf("initial state = %+v", st)
	}

	if err := s.MoveTo(ctx, 10, 20, 40); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}
	st, _ = s.GetState(ctx)
	if st.X != 10 || st.Y != 20 || st.Z != 40 {
		t.Fatalf("state after MoveTo = %+v", st)
	}

	if err := s.SetAltitude(ctx, 55); err != nil {
		t.Fatalf("SetAltitude: %v", err)
	}
	st, _ = s.GetState(ctx)
	if st.Z != 55 || st.X != 10 {
		t.Fatalf("state after SetAltitude = %+v", st)
	}

	if err := s.Hover(ctx); err != nil {
		t.Fatalf("Hover: %v", err)
	}
}
