package conquest

// Difficulty selects an AI player's tuning, per spec.md §4.9's
// difficultySettings table.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type difficultySetting struct {
	GrowthMultiplier float64
	AIIntervalMS     int64
}

var difficultySettings = map[Difficulty]difficultySetting{
	DifficultyEasy:   {GrowthMultiplier: 0.8, AIIntervalMS: 6000},
	DifficultyMedium: {GrowthMultiplier: 1.0, AIIntervalMS: 4000},
	DifficultyHard:   {GrowthMultiplier: 1.3, AIIntervalMS: 2500},
}

// Player is one galaxy participant, human or AI.
type Player struct {
	ID      string
	Address string
	Name    string

	HomePlanetID int
	Alive        bool
	Online       bool
	IsAI         bool
	Difficulty   Difficulty

	TotalUnits  float64
	PlanetCount int

	LastAIActionAt int64
	RevealSent     bool
}
