package league

// GenerateSchedule returns a single round-robin schedule for the provided teams.
// It outputs a slice of rounds, each round being a slice of fixtures.
func GenerateSchedule(teams []string) [][]Fixture {
	if len(teams) < 2 {
		return nil
	}

	// Work on a copy so the rotation does not reorder the caller's slice.
	slots := make([]string, len(teams), len(teams)+1)
	copy(slots, teams)

	// If odd number of teams, add an empty placeholder (bye)
	if len(slots)%2 != 0 {
		slots = append(slots, "")
	}
	n := len(slots)

	rounds := make([][]Fixture, n-1)
	for i := 0; i < n-1; i++ {
		round := make([]Fixture, 0, n/2)
		for j := 0; j < n/2; j++ {
			home := slots[j]
			away := slots[n-1-j]
			if home == "" || away == "" {
				continue
			}
			// Alternate the fixed team's venue so it is not always at home.
			if j == 0 && i%2 == 1 {
				home, away = away, home
			}
			round = append(round, Fixture{Home: home, Away: away, Week: i + 1})
		}
		rounds[i] = round

		// Rotate every slot except the first
		last := slots[n-1]
		copy(slots[2:], slots[1:n-1])
		slots[1] = last
	}
	return rounds
}

// GenerateFullSeason returns a double round-robin: the second half repeats
// the first with home and away swapped.
func GenerateFullSeason(teams []string) [][]Fixture {
	firstHalf := GenerateSchedule(teams)
	secondHalf := make([][]Fixture, len(firstHalf))
	for i, rnd := range firstHalf {
		swapped := make([]Fixture, len(rnd))
		for j, f := range rnd {
			swapped[j] = Fixture{Home: f.Away, Away: f.Home, Week: i + 1 + len(firstHalf)}
		}
		secondHalf[i] = swapped
	}
	return append(firstHalf, secondHalf...)
}

// Flatten joins rounds into one fixture list.
func Flatten(rounds [][]Fixture) []Fixture {
	var out []Fixture
	for _, rnd := range rounds {
		out = append(out, rnd...)
	}
	return out
}
