package views

import "testing"

func TestCompletionAndCancellationInvalidateSameViews(t *testing.T) {
	completed := Affected(OpHabitCompleted)
	cancelled := Affected(OpHabitCancelled)
	if len(completed) != len(cancelled) {
		t.Fatalf("completion invalidates %d views, cancellation %d", len(completed), len(cancelled))
	}
	for i := range completed {
		if completed[i] != cancelled[i] {
			t.Errorf("view %d: %q vs %q", i, completed[i], cancelled[i])
		}
	}
}

func TestPurchaseInvalidatesBalanceAndOwnership(t *testing.T) {
	got := Affected(OpRewardPurchased)
	want := map[View]bool{TotalXP: false, OwnedRewards: false, Streak: false}
	for _, v := range got {
		if _, ok := want[v]; ok {
			want[v] = true
		}
	}
	for v, seen := range want {
		if !seen {
			t.Errorf("purchase should invalidate %q", v)
		}
	}
}

func TestUnknownOperation(t *testing.T) {
	if vs := Affected(Operation("nope")); vs != nil {
		t.Errorf("expected nil for unknown operation, got %v", vs)
	}
}

func TestNames(t *testing.T) {
	names := Names([]View{Streak, TotalXP})
	if len(names) != 2 || names[0] != "streak" || names[1] != "total_xp" {
		t.Errorf("Names = %v", names)
	}
}
