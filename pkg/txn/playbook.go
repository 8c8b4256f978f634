package txn

import "fmt"

// PlaybookStep is one independently executable, verifiable manual recovery
// action.
type PlaybookStep struct {
	// Sequence is the 1-based execution order.
	Sequence int `json:"sequence"`

	// Description is the operator-facing instruction.
	Description string `json:"description"`

	// Type and TargetID identify the entity the step touches.
	Type     CheckpointType `json:"type"`
	TargetID string         `json:"target_id"`

	// Verify describes how to confirm the step took effect.
	Verify string `json:"verify"`
}

// Playbook is a manual recovery plan for one operation, used when an
// automated rollback failed partway and an operator must finish the job.
type Playbook struct {
	OperationID string         `json:"operation_id"`
	Steps       []PlaybookStep `json:"steps"`
}

// CreatePlaybook derives a manual recovery plan from the operation's
// checkpoints. Steps are listed in undo order (most recent change first),
// matching the order an automated rollback would apply them.
func (m *Manager) CreatePlaybook(operationID string) (*Playbook, error) {
	m.mu.Lock()
	tx, open := m.active[operationID]
	m.mu.Unlock()

	var cps []Checkpoint
	if open {
		cps = tx.Checkpoints()
	} else {
		var err error
		cps, err = m.persistedCheckpoints(operationID)
		if err != nil {
			return nil, err
		}
	}

	pb := &Playbook{OperationID: operationID}
	seq := 0
	for i := len(cps) - 1; i >= 0; i-- {
		cp := cps[i]
		seq++
		pb.Steps = append(pb.Steps, PlaybookStep{
			Sequence:    seq,
			Description: cp.describe(),
			Type:        cp.Type,
			TargetID:    cp.ID,
			Verify:      verifyFor(cp),
		})
	}

	return pb, nil
}

func verifyFor(cp Checkpoint) string {
	switch cp.Type {
	case CheckpointFile:
		if cp.PreviousState == nil {
			return fmt.Sprintf("confirm file %q no longer exists", cp.ID)
		}
		return fmt.Sprintf("confirm file %q matches its pre-operation contents", cp.ID)
	default:
		if cp.PreviousState == nil {
			return fmt.Sprintf("confirm vector store has no entry %q", cp.ID)
		}
		return fmt.Sprintf("confirm vector store entry %q matches its pre-operation state", cp.ID)
	}
}
