package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/jblick1327/switch-interface/internal/layout"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	argv  []string
	input string
}

func newTestInjector(t *testing.T) (*Injector, *[]recordedCall) {
	t.Helper()
	inj, err := NewInjector([]string{"wtype", "-"}, []string{"wtype", "-k"}, nil)
	require.NoError(t, err)

	var calls []recordedCall
	inj.run = func(_ context.Context, argv []string, input string) error {
		calls = append(calls, recordedCall{argv: argv, input: input})
		return nil
	}
	return inj, &calls
}

func TestCommitCharacterTypesText(t *testing.T) {
	inj, calls := newTestInjector(t)

	err := inj.Commit(context.Background(), layout.Key{Label: "a", Kind: layout.KindCharacter})
	require.NoError(t, err)
	require.Len(t, *calls, 1)
	require.Equal(t, []string{"wtype", "-"}, (*calls)[0].argv)
	require.Equal(t, "a", (*calls)[0].input)
}

func TestCommitCharacterUsesActionText(t *testing.T) {
	inj, calls := newTestInjector(t)

	err := inj.Commit(context.Background(), layout.Key{Label: "␣", Kind: layout.KindCharacter, Action: " "})
	require.NoError(t, err)
	require.Equal(t, " ", (*calls)[0].input)
}

func TestCommitControlSendsNamedKey(t *testing.T) {
	inj, calls := newTestInjector(t)

	err := inj.Commit(context.Background(), layout.Key{Label: "⌫", Kind: layout.KindControl, Action: "backspace"})
	require.NoError(t, err)
	require.Equal(t, []string{"wtype", "-k", "BackSpace"}, (*calls)[0].argv)
}

func TestCommitUnknownControlFails(t *testing.T) {
	inj, calls := newTestInjector(t)

	err := inj.Commit(context.Background(), layout.Key{Label: "?", Kind: layout.KindControl, Action: "warp-drive"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown control action")
	require.Empty(t, *calls)
}

func TestCommitScanControlIsIgnored(t *testing.T) {
	inj, calls := newTestInjector(t)

	err := inj.Commit(context.Background(), layout.Key{Label: "→", Kind: layout.KindControl, Action: layout.ActionPageNext})
	require.NoError(t, err)
	require.Empty(t, *calls)
}

func TestShiftLatchUppercasesNextCharacterOnly(t *testing.T) {
	inj, calls := newTestInjector(t)

	require.NoError(t, inj.Commit(context.Background(), layout.Key{Label: "⇧", Kind: layout.KindControl, Action: "shift", Mode: layout.ModeLatch}))
	require.NoError(t, inj.Commit(context.Background(), layout.Key{Label: "a", Kind: layout.KindCharacter}))
	require.NoError(t, inj.Commit(context.Background(), layout.Key{Label: "b", Kind: layout.KindCharacter}))

	require.Len(t, *calls, 2)
	require.Equal(t, "A", (*calls)[0].input)
	require.Equal(t, "b", (*calls)[1].input)
}

func TestCapsToggleUppercasesUntilToggledOff(t *testing.T) {
	inj, calls := newTestInjector(t)
	caps := layout.Key{Label: "⇪", Kind: layout.KindControl, Action: "caps-lock", Mode: layout.ModeToggle}

	require.NoError(t, inj.Commit(context.Background(), caps))
	require.NoError(t, inj.Commit(context.Background(), layout.Key{Label: "a", Kind: layout.KindCharacter}))
	require.NoError(t, inj.Commit(context.Background(), layout.Key{Label: "b", Kind: layout.KindCharacter}))
	require.NoError(t, inj.Commit(context.Background(), caps))
	require.NoError(t, inj.Commit(context.Background(), layout.Key{Label: "c", Kind: layout.KindCharacter}))

	require.Equal(t, "A", (*calls)[0].input)
	require.Equal(t, "B", (*calls)[1].input)
	require.Equal(t, "c", (*calls)[2].input)
}

func TestDoubleLatchDisarms(t *testing.T) {
	mods := &Modifiers{}
	mods.Latch("shift")
	require.True(t, mods.UppercaseActive())
	mods.Latch("shift")
	require.False(t, mods.UppercaseActive())
}

func TestCommitRunErrorPropagates(t *testing.T) {
	inj, _ := newTestInjector(t)
	inj.run = func(context.Context, []string, string) error {
		return errors.New("tool exited 1")
	}

	err := inj.Commit(context.Background(), layout.Key{Label: "a", Kind: layout.KindCharacter})
	require.Error(t, err)
}

func TestNewInjectorRequiresArgv(t *testing.T) {
	_, err := NewInjector(nil, []string{"wtype", "-k"}, nil)
	require.Error(t, err)

	_, err = NewInjector([]string{"wtype", "-"}, nil, nil)
	require.Error(t, err)
}

func TestSinkFuncAdapter(t *testing.T) {
	var got layout.Key
	s := SinkFunc(func(_ context.Context, key layout.Key) error {
		got = key
		return nil
	})

	require.NoError(t, s.Commit(context.Background(), layout.Key{Label: "x", Kind: layout.KindCharacter}))
	require.Equal(t, "x", got.Label)
}
