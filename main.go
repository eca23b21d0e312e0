package main

import "lootcouncil/internal/app"

func main() {
	app.Main()
}
