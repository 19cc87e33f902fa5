// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package gpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	// Register the Vulkan backend.
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/dstex"
)

// ErrNoAdapter is returned when no GPU adapter is available.
var ErrNoAdapter = errors.New("gpu: no adapter available")

// Device is a HAL device and its queue.
type Device struct {
	instance hal.Instance
	device   hal.Device
	queue    hal.Queue
	name     string
	external bool
}

// Open creates a Vulkan instance and opens the first discrete or
// integrated GPU, falling back to the first adapter.
func Open() (*Device, error) {
	const op = "gpu.Open"
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("%w: vulkan backend not registered", ErrNoAdapter))
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("create instance: %w", err))
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, dstex.Wrap(op, dstex.KindGPU, ErrNoAdapter)
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, dstex.Wrap(op, dstex.KindGPU, fmt.Errorf("open device: %w", err))
	}
	dstex.Logger().Info("gpu: device opened", "adapter", selected.Info.Name)
	return &Device{instance: instance, device: openDev.Device, queue: openDev.Queue, name: selected.Info.Name}, nil
}

// OpenNoop opens a device on the noop backend. Commands are accepted and
// discarded; it is used for tests and headless dry runs.
func OpenNoop() (*Device, error) {
	const op = "gpu.OpenNoop"
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, dstex.Wrap(op, dstex.KindGPU, ErrNoAdapter)
	}
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	return &Device{instance: instance, device: openDev.Device, queue: openDev.Queue, name: "noop"}, nil
}

// FromProvider borrows the HAL device and queue of a provider. Accepted
// providers expose HalDevice and HalQueue returning either any or the HAL
// types, such as *wgpu.Device, or wrap such a device behind Device(), as
// the gpucontext.DeviceProvider of a gogpu window does. Close does not
// destroy a borrowed device.
func FromProvider(provider any) (*Device, error) {
	const op = "gpu.FromProvider"
	device, queue, err := halFromProvider(provider)
	if err != nil {
		return nil, dstex.Wrap(op, dstex.KindGPU, err)
	}
	return &Device{device: device, queue: queue, name: "external", external: true}, nil
}

func halFromProvider(provider any) (hal.Device, hal.Queue, error) {
	var device, queue any
	switch p := provider.(type) {
	case interface {
		HalDevice() any
		HalQueue() any
	}:
		device, queue = p.HalDevice(), p.HalQueue()
	case interface {
		HalDevice() hal.Device
		HalQueue() hal.Queue
	}:
		device, queue = p.HalDevice(), p.HalQueue()
	case interface{ Device() gpucontext.Device }:
		if p.Device() == nil {
			return nil, nil, errors.New("provider has no device")
		}
		return halFromProvider(p.Device())
	default:
		return nil, nil, fmt.Errorf("provider %T does not expose HAL types", provider)
	}
	d, ok := device.(hal.Device)
	if !ok || d == nil {
		return nil, nil, errors.New("provider HalDevice is not hal.Device")
	}
	q, ok := queue.(hal.Queue)
	if !ok || q == nil {
		return nil, nil, errors.New("provider HalQueue is not hal.Queue")
	}
	return d, q, nil
}

// Name returns the adapter name.
func (d *Device) Name() string { return d.name }

// HAL returns the underlying device and queue.
func (d *Device) HAL() (hal.Device, hal.Queue) { return d.device, d.queue }

// Close destroys an owned device and its instance.
func (d *Device) Close() {
	if d.external {
		return
	}
	if d.device != nil {
		d.device.Destroy()
		d.device = nil
	}
	if d.instance != nil {
		d.instance.Destroy()
		d.instance = nil
	}
}
