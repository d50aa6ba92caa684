package config

import (
	"fmt"
)

// Validate checks the structural integrity of a loaded model: unique stage
// names, resolvable next references, sane partition counts, single-feeder
// chains, and an acyclic stage graph.
func (m *Model) Validate() error {
	if m.Flow == nil {
		return fmt.Errorf("pipeline has no flow block")
	}
	if len(m.Stages) == 0 {
		return fmt.Errorf("pipeline %q defines no stages", m.Flow.Name)
	}

	seen := make(map[string]bool, len(m.Stages))
	for _, s := range m.Stages {
		if s.Name == "" {
			return fmt.Errorf("stage with empty name")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate stage name %q", s.Name)
		}
		seen[s.Name] = true

		if s.Callback == "" {
			return fmt.Errorf("stage %q has no callback", s.Name)
		}
		if s.Partitions < 1 {
			return fmt.Errorf("stage %q: partitions must be >= 1, got %d", s.Name, s.Partitions)
		}
		if s.Partitions > 1 && !s.Converge {
			// Without convergence there is no single point that can account
			// for every partition's completion.
			return fmt.Errorf("stage %q: %d partitions require converge = true", s.Name, s.Partitions)
		}
	}

	fedBy := make(map[string]string)
	for _, s := range m.Stages {
		if s.Next == "" {
			continue
		}
		if s.Next == s.Name {
			return fmt.Errorf("stage %q: self-referential next not allowed", s.Name)
		}
		if !seen[s.Next] {
			return fmt.Errorf("stage %q: unknown next stage %q", s.Name, s.Next)
		}
		if feeder, ok := fedBy[s.Next]; ok {
			// Completion accounting expects exactly one inputs-done signal
			// per downstream partition, so a stage can have one feeder.
			return fmt.Errorf("stage %q is fed by both %q and %q", s.Next, feeder, s.Name)
		}
		fedBy[s.Next] = s.Name
	}

	return m.detectCycles()
}

// detectCycles runs a depth-first search over the stage chain with the
// classic three node sets: permanent (fully visited, known safe), temporary
// (on the current traversal path), and unvisited.
func (m *Model) detectCycles() error {
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)

	var visit func(s *Stage) error
	visit = func(s *Stage) error {
		if permanent[s.Name] {
			return nil
		}
		if temporary[s.Name] {
			return fmt.Errorf("cycle detected involving stage %q", s.Name)
		}
		temporary[s.Name] = true

		if s.Next != "" {
			if err := visit(m.StageByName(s.Next)); err != nil {
				return err
			}
		}

		delete(temporary, s.Name)
		permanent[s.Name] = true
		return nil
	}

	for _, s := range m.Stages {
		if !permanent[s.Name] {
			if err := visit(s); err != nil {
				return err
			}
		}
	}
	return nil
}

// Entries returns the stages no other stage feeds: the pipeline's input
// front. Items fed into the pipeline are delivered to these.
func (m *Model) Entries() []*Stage {
	fed := make(map[string]bool)
	for _, s := range m.Stages {
		if s.Next != "" {
			fed[s.Next] = true
		}
	}
	var entries []*Stage
	for _, s := range m.Stages {
		if !fed[s.Name] {
			entries = append(entries, s)
		}
	}
	return entries
}
