// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package platform

import "fmt"

// Family is the package-manager strategy for a platform. It is implemented
// only by Debian and RPM.
type Family interface {
	family()
}

// Debian covers apt based distributions. Version selects the repository.
type Debian struct {
	Version string
}

// RPM covers yum based distributions.
type RPM struct {
	ID      string
	Version string
}

func (Debian) family() {}
func (RPM) family()    {}

// UnsupportedError is returned for distributions no family handles.
type UnsupportedError struct {
	Identity Identity
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("unsupported operating system: %s", e.Identity)
}

// Family maps the identity to its package-manager family.
func (i Identity) Family() (Family, error) {
	switch i.ID {
	case "ubuntu":
		return Debian{Version: i.Version}, nil
	case "centos", "rocky":
		return RPM{ID: i.ID, Version: i.Version}, nil
	default:
		return nil, &UnsupportedError{Identity: i}
	}
}
