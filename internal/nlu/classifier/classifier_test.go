package classifier

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-receptionist/internal/models"
	"restaurant-receptionist/pkg/registry"
)

func trainingSet() []Example {
	return []Example{
		{"what time do you open", models.IntentHours},
		{"when do you close tonight", models.IntentHours},
		{"are you open on sunday", models.IntentHours},
		{"what are your hours", models.IntentHours},
		{"i want to order a falafel wrap", models.IntentOrder},
		{"can i get two baklava", models.IntentOrder},
		{"i'd like to order food for pickup", models.IntentOrder},
		{"let me get a chicken shawarma wrap", models.IntentOrder},
		{"book a table for four", models.IntentReservation},
		{"i need a reservation tomorrow", models.IntentReservation},
		{"can i reserve a table friday night", models.IntentReservation},
		{"table for two at seven", models.IntentReservation},
		{"hello there", models.IntentGreeting},
		{"hi good evening", models.IntentGreeting},
		{"hey", models.IntentGreeting},
	}
}

func TestTrainAndPredict(t *testing.T) {
	m, err := Train(trainingSet(), TrainOptions{Name: "intent", Version: "0.1.0"})
	require.NoError(t, err)
	assert.Equal(t, AlgorithmNaiveBayes, m.Algorithm)
	assert.Len(t, m.Labels, 4)

	tests := []struct {
		text string
		want models.Intent
	}{
		{"what time do you close", models.IntentHours},
		{"i want to order two falafel wraps", models.IntentOrder},
		{"reserve a table for six", models.IntentReservation},
		{"hello", models.IntentGreeting},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, conf := m.Predict(tt.text)
			assert.Equal(t, tt.want, got)
			assert.Greater(t, conf, 0.25)
			assert.LessOrEqual(t, conf, 1.0)
		})
	}
}

func TestPredict_NoKnownFeatures(t *testing.T) {
	m, err := Train(trainingSet(), TrainOptions{})
	require.NoError(t, err)

	got, conf := m.Predict("zzzz qqqq")
	assert.Equal(t, models.IntentUnknown, got)
	assert.Zero(t, conf)
}

func TestTrain_Empty(t *testing.T) {
	_, err := Train(nil, TrainOptions{})
	assert.Error(t, err)
}

func TestEvaluate(t *testing.T) {
	m, err := Train(trainingSet(), TrainOptions{})
	require.NoError(t, err)

	metrics := Evaluate(m, trainingSet())
	assert.Equal(t, len(trainingSet()), metrics.Support)
	assert.Greater(t, metrics.Accuracy, 0.9)
	assert.Greater(t, metrics.MacroF1, 0.9)
	assert.Len(t, metrics.PerLabel, 4)

	assert.Zero(t, Evaluate(m, nil).Accuracy)
}

func TestSplit(t *testing.T) {
	train, holdout := Split(trainingSet(), 5)
	assert.Len(t, holdout, 3)
	assert.Len(t, train, 12)

	all, none := Split(trainingSet(), 1)
	assert.Len(t, all, 15)
	assert.Empty(t, none)
}

func TestSaveAndLoadModel(t *testing.T) {
	m, err := Train(trainingSet(), TrainOptions{Name: "intent", Version: "0.1.0"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, m.Save(path))

	loaded, err := LoadModel(path)
	require.NoError(t, err)

	wantIntent, wantConf := m.Predict("are you open sunday")
	gotIntent, gotConf := loaded.Predict("are you open sunday")
	assert.Equal(t, wantIntent, gotIntent)
	assert.InDelta(t, wantConf, gotConf, 1e-9)
}

func TestLoader_LoadLatest(t *testing.T) {
	dir := t.TempDir()
	regPath := filepath.Join(dir, "registry.json")

	t.Run("missing registry is absent", func(t *testing.T) {
		_, err := NewLoader(regPath).LoadLatest("intent")
		assert.True(t, errors.Is(err, ErrModelAbsent))
	})

	m, err := Train(trainingSet(), TrainOptions{Name: "intent", Version: "0.2.0"})
	require.NoError(t, err)
	require.NoError(t, m.Save(filepath.Join(dir, "intent-0.2.0.json")))

	reg, err := registry.LoadOrCreate(regPath)
	require.NoError(t, err)
	require.NoError(t, reg.Register("intent", registry.ModelVersion{Version: "0.1.0", Path: "intent-0.1.0.json"}))
	require.NoError(t, reg.Register("intent", registry.ModelVersion{Version: "0.2.0", Path: "intent-0.2.0.json"}))
	require.NoError(t, reg.Save(regPath))

	t.Run("resolves highest version relative to registry", func(t *testing.T) {
		loaded, err := NewLoader(regPath).LoadLatest("intent")
		require.NoError(t, err)
		assert.Equal(t, "0.2.0", loaded.Version)
	})

	t.Run("unknown name is absent", func(t *testing.T) {
		_, err := NewLoader(regPath).LoadLatest("sentiment")
		assert.True(t, errors.Is(err, ErrModelAbsent))
	})
}
