package core

// Build spawns one process per command and folds them left to right into a
// single stage. One command yields a bare *ProcessStage. If any spawn fails,
// the stages already started are killed and no later command is spawned, so
// a pipeline is never left half built.
func Build(cmds []Command, opts ...SpawnOption) (Stage, error) {
	if len(cmds) == 0 {
		return nil, ErrEmptyPipeline
	}

	var stage Stage
	for _, c := range cmds {
		p, err := NewProcessStage(c, opts...)
		if err != nil {
			if stage != nil {
				_ = stage.Close()
			}
			return nil, err
		}
		if stage == nil {
			stage = p
			continue
		}
		stage = Compose(stage, p)
	}
	return stage, nil
}

// Pipeline is Build for plain argument lists:
//
//	Pipeline([]string{"ls", "-la", "/etc"}, []string{"grep", "rc"})
func Pipeline(args ...[]string) (Stage, error) {
	cmds := make([]Command, len(args))
	for i, a := range args {
		cmds[i] = Cmd(a...)
	}
	return Build(cmds)
}
