package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func seats(pairs ...interface{}) Seats {
	out := make(Seats, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Seat{Code: pairs[i].(string), Floor: pairs[i+1].(int)})
	}
	return out
}

func TestSeats_Intersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Seats
		want Seats
	}{
		{"disjoint", seats("A1", 1), seats("A2", 1), Seats{}},
		{"same code different floor", seats("A1", 1), seats("A1", 2), Seats{}},
		{"partial", seats("A1", 1, "A2", 1, "B1", 2), seats("A2", 1, "B1", 2, "C1", 1), seats("A2", 1, "B1", 2)},
		{"full", seats("A1", 1), seats("A1", 1), seats("A1", 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Intersect(tt.b))
		})
	}
}

func TestSeats_Subtract(t *testing.T) {
	got := seats("A1", 1, "A2", 1, "A3", 1).Subtract(seats("A2", 1))
	assert.Equal(t, seats("A1", 1, "A3", 1), got)

	assert.Empty(t, seats("A1", 1).Subtract(seats("A1", 1)))
}

func TestSeats_SameSet(t *testing.T) {
	assert.True(t, seats("A1", 1, "A2", 1).SameSet(seats("A2", 1, "A1", 1)))
	assert.False(t, seats("A1", 1, "A2", 1).SameSet(seats("A1", 1)))
	assert.False(t, seats("A1", 1).SameSet(seats("A1", 2)))
	assert.True(t, Seats{}.SameSet(nil))
}

func TestSeats_ValidateRequested(t *testing.T) {
	tests := []struct {
		name    string
		seats   Seats
		wantErr error
	}{
		{"empty", nil, ErrSeatsRequired},
		{"blank code", Seats{{Code: "", Floor: 1}}, ErrValidation},
		{"duplicate", seats("A1", 1, "A1", 1), ErrDuplicateSeat},
		{"same code on two floors", seats("A1", 1, "A1", 2), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.seats.ValidateRequested()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestSeats_Sorted(t *testing.T) {
	in := seats("B1", 2, "A2", 1, "A1", 1)
	assert.Equal(t, seats("A1", 1, "A2", 1, "B1", 2), in.Sorted())
	assert.Equal(t, "B1", in[0].Code, "Sorted must not reorder the receiver")
}

func TestSeatMap_Collisions(t *testing.T) {
	m := &SeatMap{BookedSeats: seats("A1", 1, "A2", 1), TotalBookedSeats: 2}
	assert.Equal(t, seats("A2", 1), m.Collisions(seats("A2", 1, "A3", 1)))
	assert.Empty(t, m.Collisions(seats("A3", 1)))
}
