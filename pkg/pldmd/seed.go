/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package pldmd

import (
	"errors"
	"fmt"

	"github.com/carverauto/pldmd/pkg/entity"
	"github.com/carverauto/pldmd/pkg/models"
	"github.com/carverauto/pldmd/pkg/pdr"
)

var errUnknownParent = errors.New("entity parent not declared")

// SeedBMC builds the BMC-local entity tree from the configured definitions
// and stores the BMC's own association and terminus locator records in repo.
func SeedBMC(cfg *models.PLDMDConfig, repo *pdr.Repository) (*entity.Tree, error) {
	tree := entity.NewTree()
	nodes := make(map[string]*entity.Node, len(cfg.Entities))

	for _, def := range cfg.Entities {
		var parent *entity.Node

		if def.Parent != "" {
			p, ok := nodes[def.Parent]
			if !ok {
				return nil, fmt.Errorf("%w: %s", errUnknownParent, def.Parent)
			}

			parent = p
		}

		e := entity.Entity{Type: def.Type, Instance: def.Instance}
		nodes[def.ID] = tree.AddEntity(e, parent, entity.AssociationType(def.Association), entity.AddOptions{})
	}

	th := cfg.Terminus.BMCTerminusHandle

	var seedErr error

	tree.Walk(func(n *entity.Node) bool {
		for _, group := range childGroups(n) {
			ea, err := pdr.NewEntityAssociation(n.Entity(), group.assoc, group.children)
			if err != nil {
				seedErr = fmt.Errorf("association for %s: %w", n.Entity(), err)
				return false
			}

			if _, err := repo.Add(ea.Marshal(), false, th, 0); err != nil {
				seedErr = fmt.Errorf("store association for %s: %w", n.Entity(), err)
				return false
			}
		}

		return true
	})

	if seedErr != nil {
		return nil, seedErr
	}

	locator := &pdr.TerminusLocator{
		TerminusHandle: th,
		Valid:          true,
		TID:            cfg.Terminus.BMCTID,
		LocatorType:    pdr.LocatorMCTPEID,
		LocatorValue:   []byte{cfg.Terminus.BMCEID},
	}

	if _, err := repo.Add(locator.Marshal(), false, th, 0); err != nil {
		return nil, fmt.Errorf("store bmc terminus locator: %w", err)
	}

	return tree, nil
}

type childGroup struct {
	assoc    entity.AssociationType
	children []entity.Entity
}

// childGroups splits a node's children by association type, keeping the
// order in which each type first appears.
func childGroups(n *entity.Node) []childGroup {
	var groups []childGroup

	for _, c := range n.Children() {
		i := 0
		for i < len(groups) && groups[i].assoc != c.AssociationType() {
			i++
		}

		if i == len(groups) {
			groups = append(groups, childGroup{assoc: c.AssociationType()})
		}

		groups[i].children = append(groups[i].children, c.Entity())
	}

	return groups
}
