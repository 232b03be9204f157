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

package pldm

// State set identifiers from DSP0249 that the daemon interprets.
const (
	StateSetHealthState           uint16 = 1
	StateSetAvailability          uint16 = 2
	StateSetOperationalFaultState uint16 = 10
	StateSetPresence              uint16 = 13
	StateSetIdentifyState         uint16 = 17
	StateSetVersion               uint16 = 18
)

// State values within the sets above.
const (
	HealthNormal uint8 = 1

	OperationalFaultNormal uint8 = 1

	AvailabilityAvailable uint8 = 1

	PresencePresent uint8 = 1

	IdentifyUnasserted uint8 = 1
	IdentifyAsserted   uint8 = 2
)
