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

package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
	"github.com/coreos/go-systemd/v22/util"
)

// DBusAPI is the subset of the systemd D-Bus connection the DBus controller
// uses.
type DBusAPI interface {
	RestartUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	StopUnitContext(ctx context.Context, name string, mode string, ch chan<- string) (int, error)
	DisableUnitFilesContext(ctx context.Context, files []string, runtime bool) ([]dbus.DisableUnitFileChange, error)
	ReloadContext(ctx context.Context) error
	GetUnitPropertyContext(ctx context.Context, unit string, propertyName string) (*dbus.Property, error)
	Close()
}

// DBusAPIFactory opens a connection to systemd.
type DBusAPIFactory = func(ctx context.Context) (DBusAPI, error)

var ErrSystemdNotRunning = errors.New("systemd is not the running init system")

// NewDBusAPI connects to the system bus. It fails when the host does not
// boot with systemd.
func NewDBusAPI(ctx context.Context) (DBusAPI, error) {
	if !util.IsRunningSystemd() {
		return nil, ErrSystemdNotRunning
	}
	conn, err := dbus.NewWithContext(ctx)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// DBus drives the unit through the systemd D-Bus API.
type DBus struct {
	NewConn DBusAPIFactory
}

func (d DBus) conn(ctx context.Context) (DBusAPI, error) {
	newConn := d.NewConn
	if newConn == nil {
		newConn = NewDBusAPI
	}
	conn, err := newConn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to dbus: %w", err)
	}
	return conn, nil
}

func (d DBus) Restart(ctx context.Context, unit string) error {
	conn, err := d.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	statusCh := make(chan string, 1)
	if _, err := conn.RestartUnitContext(ctx, unit, "replace", statusCh); err != nil {
		return fmt.Errorf("dbus restart request for %s failed: %w", unit, err)
	}
	return wait(ctx, "restart", unit, statusCh)
}

func (d DBus) DisableNow(ctx context.Context, unit string) error {
	conn, err := d.conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.DisableUnitFilesContext(ctx, []string{unit}, false); err != nil {
		return fmt.Errorf("dbus disable request for %s failed: %w", unit, err)
	}
	if err := conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("dbus post-disable daemon reload failed: %w", err)
	}
	statusCh := make(chan string, 1)
	if _, err := conn.StopUnitContext(ctx, unit, "replace", statusCh); err != nil {
		return fmt.Errorf("dbus stop request for %s failed: %w", unit, err)
	}
	return wait(ctx, "stop", unit, statusCh)
}

func (d DBus) ActiveState(ctx context.Context, unit string) (string, error) {
	conn, err := d.conn(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	prop, err := conn.GetUnitPropertyContext(ctx, unit, "ActiveState")
	if err != nil {
		return "", fmt.Errorf("dbus ActiveState query for %s failed: %w", unit, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return "", fmt.Errorf("unexpected ActiveState value %v for %s", prop.Value, unit)
	}
	return state, nil
}

func wait(ctx context.Context, op, unit string, statusCh <-chan string) error {
	select {
	case status := <-statusCh:
		if status != "done" {
			return fmt.Errorf("failed to %s %s (job result %q)", op, unit, status)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
